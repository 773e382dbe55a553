// Package api contains typed helpers for the backend resources, all calls go through the gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/verdantlabs/plantdash/internal/gateway"
)

// Requester sends authenticated backend requests, implemented by *gateway.Client
type Requester interface {
	Request(ctx context.Context, url string, opts gateway.RequestOptions) (*http.Response, error)
}

// ErrInvalidInput is returned before any request is sent when the input is rejected locally
var ErrInvalidInput = fmt.Errorf("invalid input")

// Error is a non-2xx backend response, Message is the error field of the response body.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend responded with %d: %s", e.Status, e.Message)
}

// AsError returns the backend error wrapped in err, if any
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	Plants  *Plants
	Devices *Devices
	Sensors *Sensors
	Pumps   *Pumps
}

func NewClient(requester Requester) *Client {
	return &Client{
		Plants:  &Plants{requester: requester},
		Devices: &Devices{requester: requester},
		Sensors: &Sensors{requester: requester},
		Pumps:   &Pumps{requester: requester},
	}
}

// doJSON sends in as a JSON body (if not nil) and decodes the response into a T. Errors of the
// gateway, including the session expired signal, are returned unchanged.
func doJSON[T any](ctx context.Context, requester Requester, method, path string, in any) (T, error) {
	var output T
	opts := gateway.RequestOptions{Method: method, Header: http.Header{}}
	opts.Header.Set("Accept", "application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return output, err
		}
		opts.Body = body
		opts.Header.Set("Content-Type", "application/json")
	}
	res, err := requester.Request(ctx, path, opts)
	if err != nil {
		return output, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return output, responseError(res)
	}
	if res.StatusCode == http.StatusNoContent {
		return output, nil
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return output, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return output, nil
	}
	err = json.Unmarshal(raw, &output)
	if err != nil {
		return output, fmt.Errorf("cannot decode the response of %s %s: %w", method, path, err)
	}
	return output, nil
}

func responseError(res *http.Response) *Error {
	apiErr := &Error{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
	var body errorBody
	err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&body)
	if err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}

// empty is decoded from responses whose body is ignored
type empty struct{}
