package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"credential", domain.ErrInvalidCredential, http.StatusBadRequest},
		{"category", fmt.Errorf("%w: %q", domain.ErrInvalidCategory, "videos"), http.StatusBadRequest},
		{"not found in step", &domain.ReplacementError{Category: domain.CategoryPages, Step: "locate image", Err: domain.ErrResourceNotFound}, http.StatusNotFound},
		{"missing locator", &domain.ReplacementError{Category: domain.CategoryBlogs, Step: "locate article", Err: domain.ErrMissingLocator}, http.StatusUnprocessableEntity},
		{"not implemented", domain.ErrNotImplemented, http.StatusNotImplemented},
		{"upstream", &domain.ReplacementError{Step: "update", Err: &shopify.UpstreamError{Status: 500}}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
