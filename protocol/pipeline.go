package protocol

import (
	"encoding/json"
	"strconv"
)

// Stream request and result entry type tags.
const (
	RequestExecute = "execute"
	RequestBatch   = "batch"
	RequestClose   = "close"

	ResultOk    = "ok"
	ResultError = "error"
)

// PipelineRequest is the body POSTed to /v3/pipeline. Baton is nil for
// single-exchange use: the stream is opened, executed and closed in one
// round trip.
type PipelineRequest struct {
	Baton    *string         `json:"baton"`
	Requests []StreamRequest `json:"requests"`
}

// StreamRequest is one entry in a pipeline request. Type selects which of
// the payload fields is set.
type StreamRequest struct {
	Type  string `json:"type"`
	Stmt  *Stmt  `json:"stmt,omitempty"`
	Batch *Batch `json:"batch,omitempty"`
}

// ExecuteRequest wraps a statement as a pipeline entry.
func ExecuteRequest(stmt *Stmt) StreamRequest {
	return StreamRequest{Type: RequestExecute, Stmt: stmt}
}

// BatchRequest wraps a batch as a pipeline entry.
func BatchRequest(batch *Batch) StreamRequest {
	return StreamRequest{Type: RequestBatch, Batch: batch}
}

// CloseRequest releases the server-side stream. It must be the last entry of
// a pipeline request.
func CloseRequest() StreamRequest {
	return StreamRequest{Type: RequestClose}
}

// PipelineResponse is the body of a /v3/pipeline response. Results align
// one-to-one with the submitted requests.
type PipelineResponse struct {
	Baton   *string        `json:"baton"`
	BaseURL string         `json:"base_url"`
	Results []StreamResult `json:"results"`
}

// StreamResult is the outcome of one pipeline entry. Type is "ok" with
// Response set, or "error" with Error set.
type StreamResult struct {
	Type     string          `json:"type"`
	Response *StreamResponse `json:"response,omitempty"`
	Error    *Error          `json:"error,omitempty"`
}

// StreamResponse is the payload of a successful pipeline entry. Type mirrors
// the request type; Execute or Batch holds the result for the matching kind,
// and a close response carries no payload.
type StreamResponse struct {
	Type    string
	Execute *StmtResult
	Batch   *BatchResult
}

// streamResponseWire is the tagged wire shape of StreamResponse
type streamResponseWire struct {
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result,omitempty"`
}

// MarshalJSON encodes the response under its type tag.
func (r StreamResponse) MarshalJSON() ([]byte, error) {
	var result any
	switch r.Type {
	case RequestExecute:
		result = r.Execute
	case RequestBatch:
		result = r.Batch
	case RequestClose:
		return json.Marshal(streamResponseWire{Type: RequestClose})
	default:
		return nil, EnvelopeError("unknown stream response type "+strconv.Quote(r.Type), nil)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(streamResponseWire{Type: r.Type, Result: raw})
}

// UnmarshalJSON decodes the tagged payload into the field matching its type.
// Unknown types are kept tag-only so the caller can reject them with context.
func (r *StreamResponse) UnmarshalJSON(data []byte) error {
	var probe streamResponseWire
	if err := json.Unmarshal(data, &probe); err != nil {
		return EnvelopeError("malformed stream response", err)
	}

	*r = StreamResponse{Type: probe.Type}
	switch probe.Type {
	case RequestExecute:
		r.Execute = new(StmtResult)
		if err := json.Unmarshal(probe.Result, r.Execute); err != nil {
			return EnvelopeError("malformed execute result", err)
		}
	case RequestBatch:
		r.Batch = new(BatchResult)
		if err := json.Unmarshal(probe.Result, r.Batch); err != nil {
			return EnvelopeError("malformed batch result", err)
		}
	}
	return nil
}
