package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/weftwork/weft/pkg/types"
)

func doJSON(method, path string, body any) (*http.Response, []byte) {
	GinkgoHelper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, testServer.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	resp.Body.Close()

	return resp, data
}

func bootstrap(threadID string) map[string]any {
	GinkgoHelper()

	resp, body := doJSON("POST", "/session/bootstrap", map[string]string{"threadId": threadID})
	Expect(resp.StatusCode).To(Equal(200))

	var result map[string]any
	Expect(json.Unmarshal(body, &result)).To(Succeed())
	return result
}

// sseEvents parses the data payloads out of an SSE body.
func sseEvents(body []byte) []map[string]any {
	GinkgoHelper()

	var events []map[string]any
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		Expect(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev)).To(Succeed())
		events = append(events, ev)
	}
	return events
}

var _ = Describe("Server Endpoints", func() {
	var sessionID string
	var counter int

	BeforeEach(func() {
		result := bootstrap("")
		sessionID = result["sessionId"].(string)
		counter++
	})

	newThreadID := func() string {
		return fmt.Sprintf("api-thread-%d", counter)
	}

	Describe("POST /session/bootstrap", func() {
		It("establishes a session with a default thread", func() {
			result := bootstrap("")
			Expect(result["sessionId"]).NotTo(BeEmpty())
			Expect(result["threadId"]).NotTo(BeEmpty())
			Expect(result["agent"].(map[string]any)["agent"]).To(Equal("echo"))
		})

		It("is stable across calls", func() {
			first := bootstrap("")
			second := bootstrap("")
			Expect(second["sessionId"]).To(Equal(first["sessionId"]))
			Expect(second["threadId"]).To(Equal(first["threadId"]))
		})

		It("creates an explicitly requested thread", func() {
			result := bootstrap("requested-thread")
			Expect(result["threadId"]).To(Equal("requested-thread"))
		})
	})

	Describe("Thread lifecycle", func() {
		It("creates, lists, and deletes threads", func() {
			threadID := newThreadID()

			resp, body := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(200))

			var created map[string]string
			Expect(json.Unmarshal(body, &created)).To(Succeed())
			Expect(created["threadId"]).To(Equal(threadID))

			resp, body = doJSON("GET", "/sessions/"+sessionID+"/threads", nil)
			Expect(resp.StatusCode).To(Equal(200))
			var listed map[string][]string
			Expect(json.Unmarshal(body, &listed)).To(Succeed())
			Expect(listed["threads"]).To(ContainElement(threadID))

			resp, _ = doJSON("DELETE", "/sessions/"+sessionID+"/threads/"+threadID, nil)
			Expect(resp.StatusCode).To(Equal(200))

			resp, _ = doJSON("GET", "/sessions/"+sessionID+"/threads/"+threadID+"/state", nil)
			Expect(resp.StatusCode).To(Equal(404))
		})

		It("mints a thread id when none is supplied", func() {
			resp, body := doJSON("POST", "/sessions/"+sessionID+"/threads", nil)
			Expect(resp.StatusCode).To(Equal(200))

			var created map[string]string
			Expect(json.Unmarshal(body, &created)).To(Succeed())
			Expect(created["threadId"]).NotTo(BeEmpty())
		})

		It("returns 409 for a duplicate thread id", func() {
			threadID := newThreadID()
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(200))

			resp, body := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(409))
			Expect(string(body)).To(ContainSubstring("ALREADY_EXISTS"))
		})

		It("returns 404 for operations on a missing thread", func() {
			resp, _ := doJSON("DELETE", "/sessions/"+sessionID+"/threads/no-such-thread", nil)
			Expect(resp.StatusCode).To(Equal(404))

			resp, _ = doJSON("POST", "/sessions/"+sessionID+"/threads/no-such-thread/clear", nil)
			Expect(resp.StatusCode).To(Equal(404))
		})
	})

	Describe("Thread state", func() {
		var threadID string

		BeforeEach(func() {
			threadID = newThreadID()
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(200))
		})

		It("reports the default agent and model", func() {
			resp, body := doJSON("GET", "/sessions/"+sessionID+"/threads/"+threadID+"/state", nil)
			Expect(resp.StatusCode).To(Equal(200))

			var state types.ThreadState
			Expect(json.Unmarshal(body, &state)).To(Succeed())
			Expect(state.ThreadID).To(Equal(threadID))
			Expect(state.Agent.Agent).To(Equal("echo"))
			Expect(state.Agent.IsDefault).To(BeTrue())
			Expect(state.Model.Model).To(Equal("echo-1"))
			Expect(state.Messages).To(BeEmpty())
		})

		It("patches the model and resets it with an empty value", func() {
			resp, body := doJSON("PATCH", "/sessions/"+sessionID+"/threads/"+threadID+"/state",
				map[string]string{"model": "echo-1-verbose"})
			Expect(resp.StatusCode).To(Equal(200))

			var state types.ThreadState
			Expect(json.Unmarshal(body, &state)).To(Succeed())
			Expect(state.Model.Model).To(Equal("echo-1-verbose"))
			Expect(state.Model.IsDefault).To(BeFalse())

			resp, body = doJSON("PATCH", "/sessions/"+sessionID+"/threads/"+threadID+"/state",
				map[string]string{"model": ""})
			Expect(resp.StatusCode).To(Equal(200))
			Expect(json.Unmarshal(body, &state)).To(Succeed())
			Expect(state.Model.IsDefault).To(BeTrue())
		})

		It("rejects an unknown agent with 400 and alternatives", func() {
			resp, body := doJSON("PATCH", "/sessions/"+sessionID+"/threads/"+threadID+"/state",
				map[string]string{"agent": "gremlin"})
			Expect(resp.StatusCode).To(Equal(400))
			Expect(string(body)).To(ContainSubstring("Echo"))
		})

		It("rejects an unknown model with 400", func() {
			resp, _ := doJSON("PATCH", "/sessions/"+sessionID+"/threads/"+threadID+"/state",
				map[string]string{"model": "made-up"})
			Expect(resp.StatusCode).To(Equal(400))
		})
	})

	Describe("POST .../chat", func() {
		var threadID string

		BeforeEach(func() {
			threadID = newThreadID()
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(200))
		})

		It("streams deltas and a terminal result", func() {
			resp, body := doJSON("POST", "/sessions/"+sessionID+"/threads/"+threadID+"/chat",
				map[string]string{"prompt": "hello streaming world"})
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/event-stream"))

			events := sseEvents(body)
			Expect(events).NotTo(BeEmpty())

			var deltaText strings.Builder
			var final map[string]any
			for _, ev := range events {
				switch ev["type"] {
				case "run.delta":
					inner := ev["data"].(map[string]any)["event"].(map[string]any)
					if inner["type"] == "text-delta" {
						deltaText.WriteString(inner["delta"].(string))
					}
				case "run.completed":
					final = ev["data"].(map[string]any)
				}
			}

			Expect(deltaText.String()).To(Equal("hello streaming world"))
			Expect(final).NotTo(BeNil())
			Expect(final["agent"]).To(Equal("echo"))

			// The persisted transcript has the user turn and the echoed
			// response.
			resp, body = doJSON("GET", "/sessions/"+sessionID+"/threads/"+threadID+"/state", nil)
			Expect(resp.StatusCode).To(Equal(200))
			var state types.ThreadState
			Expect(json.Unmarshal(body, &state)).To(Succeed())
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[0].Role).To(Equal(types.RoleUser))
			Expect(state.Messages[1].Role).To(Equal(types.RoleAssistant))
			Expect(state.Messages[1].Text()).To(Equal("hello streaming world"))
		})

		It("rejects an empty request", func() {
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads/"+threadID+"/chat", map[string]string{})
			Expect(resp.StatusCode).To(Equal(400))
		})

		It("returns 404 for a missing thread", func() {
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads/no-such-thread/chat",
				map[string]string{"prompt": "hi"})
			Expect(resp.StatusCode).To(Equal(404))
		})
	})

	Describe("POST .../abort", func() {
		It("reports false when no run is active", func() {
			threadID := newThreadID()
			resp, _ := doJSON("POST", "/sessions/"+sessionID+"/threads", map[string]string{"threadId": threadID})
			Expect(resp.StatusCode).To(Equal(200))

			resp, body := doJSON("POST", "/sessions/"+sessionID+"/threads/"+threadID+"/abort", nil)
			Expect(resp.StatusCode).To(Equal(200))

			var result map[string]bool
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result["aborted"]).To(BeFalse())
		})
	})

	Describe("GET /event", func() {
		It("greets subscribers with server.connected", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, "GET", testServer.URL+"/event", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/event-stream"))

			scanner := bufio.NewScanner(resp.Body)
			var dataLine string
			for scanner.Scan() {
				if strings.HasPrefix(scanner.Text(), "data: ") {
					dataLine = strings.TrimPrefix(scanner.Text(), "data: ")
					break
				}
			}

			var ev map[string]any
			Expect(json.Unmarshal([]byte(dataLine), &ev)).To(Succeed())
			Expect(ev["type"]).To(Equal("server.connected"))
		})
	})

	Describe("GET /agents and /models", func() {
		It("lists registered agents", func() {
			resp, body := doJSON("GET", "/agents", nil)
			Expect(resp.StatusCode).To(Equal(200))

			var result map[string][]map[string]any
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result["agents"]).To(HaveLen(1))
			Expect(result["agents"][0]["id"]).To(Equal("echo"))
			Expect(result["agents"][0]["default"]).To(BeTrue())
		})

		It("lists the default agent's models", func() {
			resp, body := doJSON("GET", "/models", nil)
			Expect(resp.StatusCode).To(Equal(200))

			var result map[string][]map[string]any
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result["models"]).To(HaveLen(2))
			Expect(result["models"][0]["id"]).To(Equal("echo-1"))
			Expect(result["models"][0]["default"]).To(BeTrue())
		})

		It("rejects an unknown agent filter", func() {
			resp, _ := doJSON("GET", "/models?agent=gremlin", nil)
			Expect(resp.StatusCode).To(Equal(400))
		})
	})
})
