// Package querytest provides a stand-in for the sql-infer query service,
// recording every request it receives. It answers with canned responses and
// performs no checking of its own.
package querytest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// Request is a request received by the Server.
type Request struct {
	Method      string
	Path        string
	ContentType string

	// Body is the raw request body.
	Body []byte

	// Query and Params are decoded from Body. Params keeps the JSON
	// values as decoded with UseNumber.
	Query  string
	Params []interface{}

	// HasParams is true if the body carried a params member.
	HasParams bool
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   string
}

// Server is a recording HTTP server exposing the check and run endpoints.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	responses map[string]Response
}

// NewServer starts a Server. Both endpoints reply 200 with {"ok": true}
// until told otherwise with Respond. Callers must Close it.
func NewServer() *Server {
	s := &Server{responses: map[string]Response{
		"/":    {Status: http.StatusOK, Body: `{"ok": true}`},
		"/run": {Status: http.StatusOK, Body: `{"ok": true}`},
	}}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handle).Methods(http.MethodPost)
	router.HandleFunc("/run", s.handle).Methods(http.MethodPost)

	s.Server = httptest.NewServer(router)
	return s
}

// Respond sets the reply of the endpoint at path.
func (s *Server) Respond(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = Response{Status: status, Body: body}
}

// Requests returns the requests received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.Listener.Addr().String()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	}

	var decoded struct {
		Query  string          `json:"query"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		req.Query = decoded.Query
		if decoded.Params != nil {
			req.HasParams = true
			dec := json.NewDecoder(bytes.NewReader(decoded.Params))
			dec.UseNumber()
			_ = dec.Decode(&req.Params)
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	resp := s.responses[r.URL.Path]
	s.mu.Unlock()

	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
