package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/go-github/v62/github"

	zerr "github.com/regtools/ghcr-prune/errors"
)

// ManualAssistanceMessage is the exact body GitHub returns when a
// publicly visible version has too many downloads to be deleted over
// the API.
const ManualAssistanceMessage = "Publicly visible package versions with more than " +
	"5000 downloads cannot be deleted. " +
	"Contact GitHub support for further assistance."

// afterDelete runs the governor over the delete response (deletes are
// eligible for the secondary limit) and maps the go-github error into
// the scheduler's taxonomy.
func (c *baseClient) afterDelete(ctx context.Context, resp *github.Response, err error) error {
	c.governor.Wait(ctx, resp, true)

	if err == nil {
		return nil
	}

	if isTimeout(err) {
		return fmt.Errorf("%w: %w", zerr.ErrDeleteTimeout, err)
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		status := 0
		if errResp.Response != nil {
			status = errResp.Response.StatusCode
		}

		if status == http.StatusBadRequest && errResp.Message == ManualAssistanceMessage {
			return zerr.ErrManualAssistance
		}

		return fmt.Errorf("%w: status %d: %s", zerr.ErrDeleteRejected, status, errResp.Message)
	}

	return fmt.Errorf("%w: %w", zerr.ErrDeleteRejected, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
