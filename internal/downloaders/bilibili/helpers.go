package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tanq16/mediafetch/internal/utils"
)

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type page struct {
	CID  int64  `json:"cid"`
	Page int    `json:"page"`
	Part string `json:"part"`
}

type playInfo struct {
	Dash struct {
		Video []stream `json:"video"`
		Audio []stream `json:"audio"`
	} `json:"dash"`
}

type stream struct {
	ID      int    `json:"id"`
	BaseURL string `json:"baseUrl"`
}

// APIError is a well-formed answer carrying a non-zero result code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// getJSON fetches link and decodes the data member of the envelope into out.
func (r *Resolver) getJSON(ctx context.Context, link string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return utils.Permanent(fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()
	if err := utils.CheckStatus(resp, http.StatusOK); err != nil {
		return err
	}
	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	if envelope.Code != 0 {
		return utils.Permanent(&APIError{Code: envelope.Code, Message: envelope.Message})
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return utils.Permanent(fmt.Errorf("error decoding data: %w", err))
	}
	return nil
}
