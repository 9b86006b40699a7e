package youtube

import (
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"shortline/internal/quota"
	"shortline/internal/services"
)

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		marker   error
		resource string
	}{
		{
			name:   "unauthorized",
			err:    &googleapi.Error{Code: http.StatusUnauthorized},
			marker: services.ErrAuth,
		},
		{
			name: "forbidden quota reason",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
			},
			marker:   services.ErrQuota,
			resource: quota.ResourceYouTube,
		},
		{
			name: "forbidden without quota reason",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "forbidden"}},
			},
			marker: services.ErrAuth,
		},
		{
			name:     "rate limited",
			err:      &googleapi.Error{Code: http.StatusTooManyRequests},
			marker:   services.ErrQuota,
			resource: quota.ResourceYouTube,
		},
		{
			name:   "duplicate",
			err:    &googleapi.Error{Code: http.StatusBadRequest, Message: "Duplicate video upload"},
			marker: services.ErrDuplicate,
		},
		{
			name:   "server error",
			err:    &googleapi.Error{Code: http.StatusBadGateway},
			marker: services.ErrTransient,
		},
		{
			name:   "plain transport error",
			err:    errors.New("connection reset"),
			marker: services.ErrTransient,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyAPIError("insert video", tc.err)
			if !errors.Is(classified, tc.marker) {
				t.Fatalf("expected marker %v, got %v", tc.marker, classified)
			}
			resource, ok := services.Resource(classified)
			if tc.resource == "" && ok {
				t.Fatalf("unexpected resource tag %q", resource)
			}
			if tc.resource != "" && resource != tc.resource {
				t.Fatalf("expected resource %q, got %q", tc.resource, resource)
			}
		})
	}
}

func TestIsAuthenticatedMissingToken(t *testing.T) {
	uploader := NewUploader(Config{TokenDir: t.TempDir()})
	if uploader.IsAuthenticated("mychannel") {
		t.Fatal("expected missing token to report unauthenticated")
	}
}

func TestCostUnitsDefault(t *testing.T) {
	if got := NewUploader(Config{}).CostUnits(); got != 1600 {
		t.Fatalf("expected default cost 1600, got %d", got)
	}
	if got := NewUploader(Config{UploadCostUnits: 50}).CostUnits(); got != 50 {
		t.Fatalf("expected configured cost 50, got %d", got)
	}
}

func TestTruncateRespectsRunes(t *testing.T) {
	if got := truncate("héllo", 3); got != "hél" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
