package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// writeError writes err in the response envelope. A mutation dropped because
// the client went away gets no body: nobody is left to read it.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	httputil.WriteError(w, r, err, logger)
}
