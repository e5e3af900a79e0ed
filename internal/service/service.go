package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"readearn/internal/api"
)

// Requester is the part of api.Client the services need.
type Requester interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// listMeta is the pagination part of a list envelope.
type listMeta struct {
	Count    int64
	Next     string
	Previous string
}

// decodeList accepts either the paginated envelope {count, next, previous,
// results} or a bare JSON array. Anything else is api.ErrUnexpectedResponse.
func decodeList[T any](raw json.RawMessage) ([]T, listMeta, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, listMeta{}, fmt.Errorf("%w: empty list body", api.ErrUnexpectedResponse)
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, listMeta{}, fmt.Errorf("%w: %w", api.ErrUnexpectedResponse, err)
		}
		return items, listMeta{Count: int64(len(items))}, nil
	case '{':
		var env struct {
			Count    int64  `json:"count"`
			Next     string `json:"next"`
			Previous string `json:"previous"`
			Results  *[]T   `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, listMeta{}, fmt.Errorf("%w: %w", api.ErrUnexpectedResponse, err)
		}
		if env.Results == nil {
			return nil, listMeta{}, fmt.Errorf("%w: object without results", api.ErrUnexpectedResponse)
		}
		return *env.Results, listMeta{Count: env.Count, Next: env.Next, Previous: env.Previous}, nil
	default:
		return nil, listMeta{}, fmt.Errorf("%w: list is neither array nor envelope", api.ErrUnexpectedResponse)
	}
}

func withPage(path string, page int, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
