package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/gophnote/internal/rpc"
)

const (
	thriftContentType = "application/x-thrift"
	maxRequestBytes   = 64 << 20
)

type response struct {
	status      int
	contentType string
	body        []byte
}

func textResponse(status int, msg string) response {
	return response{status: status, contentType: "text/plain; charset=utf-8", body: []byte(msg)}
}

// handle routes one request:
//
//	POST /edam/user                    user store
//	POST /shard/<shard>/notestore      note store
//	POST /oauth                        code exchange
func (s *Service) handle(ctx context.Context, method, path string, body []byte) response {
	if method != http.MethodPost {
		return textResponse(http.StatusMethodNotAllowed, "method not allowed")
	}
	path = strings.TrimPrefix(path, "/api")

	switch {
	case path == "/edam/user":
		return s.serveRPC(ctx, s.userDisp, body)
	case strings.HasPrefix(path, "/shard/") && strings.HasSuffix(path, "/notestore"):
		shard := strings.TrimSuffix(strings.TrimPrefix(path, "/shard/"), "/notestore")
		if shard == "" || strings.Contains(shard, "/") {
			return textResponse(http.StatusNotFound, "unknown shard")
		}
		return s.serveRPC(withShard(ctx, shard), s.noteDisp, body)
	case path == "/oauth":
		return s.serveToken(body)
	}
	return textResponse(http.StatusNotFound, fmt.Sprintf("Not Found: %s %s", method, path))
}

func (s *Service) serveRPC(ctx context.Context, d *rpc.Dispatcher, body []byte) response {
	out, err := d.Serve(ctx, body)
	if err != nil {
		s.log.Errorf("sandbox: bad request: %v", err)
		return textResponse(http.StatusBadRequest, err.Error())
	}
	return response{status: http.StatusOK, contentType: thriftContentType, body: out}
}

// serveToken answers the OAuth code exchange with the service's token extras.
func (s *Service) serveToken(body []byte) response {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return textResponse(http.StatusBadRequest, "bad form")
	}

	s.mu.Lock()
	a, ok := s.codes[form.Get("code")]
	delete(s.codes, form.Get("code"))
	var payload map[string]string
	if ok {
		p := s.tokens[a.token]
		payload = map[string]string{
			"access_token":          a.token,
			"token_type":            "bearer",
			"edam_userId":           strconv.Itoa(int(a.user.ID)),
			"edam_noteStoreUrl":     s.noteStoreURL(a.shard),
			"edam_webApiUrlPrefix":  s.webAPIURLPrefix(a.shard),
			"edam_expires":          strconv.FormatInt(p.expires.UnixMilli(), 10),
			"edam_isLinkedNotebook": "false",
		}
	}
	s.mu.Unlock()

	if !ok {
		return textResponse(http.StatusBadRequest, "invalid code")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return textResponse(http.StatusInternalServerError, err.Error())
	}
	return response{status: http.StatusOK, contentType: "application/json", body: b}
}

// ServeHTTP makes Service an http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}
	resp := s.handle(r.Context(), r.Method, r.URL.Path, body)
	w.Header().Set("Content-Type", resp.contentType)
	w.WriteHeader(resp.status)
	w.Write(resp.body)
}

// HandleRequest serves API Gateway proxy requests. Wire bodies travel base64
// encoded.
func (s *Service) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "bad base64 body"}, nil
		}
		body = decoded
	}

	resp := s.handle(ctx, req.HTTPMethod, req.Path, body)
	out := events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    map[string]string{"Content-Type": resp.contentType},
	}
	if resp.contentType == thriftContentType {
		out.Body = base64.StdEncoding.EncodeToString(resp.body)
		out.IsBase64Encoded = true
	} else {
		out.Body = string(resp.body)
	}
	return out, nil
}
