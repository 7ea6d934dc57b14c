package transport

import (
	"errors"

	"github.com/effectai/engine-sub003/pkg/models"
)

// Result wraps the response envelope written back on a stream, so handler
// errors travel to the caller instead of dying with a stream reset.
type Result struct {
	Response *models.Envelope `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (r *Result) Rehydrate() (*models.Envelope, error) {
	var e error = nil

	if r.Error != "" {
		e = errors.New(r.Error)
	}

	return r.Response, e
}
