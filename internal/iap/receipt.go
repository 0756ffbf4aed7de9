package iap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storeBack/internal/models"
)

const receiptDateLayout = "2006-01-02 15:04:05"

// RefreshSubscriptions validates the locally stored receipt against the
// verifyReceipt endpoint and records the resulting subscription expirations.
// A missing receipt triggers a fire-and-forget platform refresh that re-runs
// the validation on success. Transport and parse failures are logged and
// dropped: this path never retries and never blocks purchase or restore
// flows.
func (s *Store) RefreshSubscriptions(ctx context.Context) error {
	if s.deps.Receipts == nil {
		s.deps.Logger.Infof("iap: no receipt source configured")
		return nil
	}

	receipt, err := s.deps.Receipts.Receipt(ctx)
	if errors.Is(err, models.ErrNoReceipt) {
		go func() {
			if err := s.deps.Receipts.Refresh(context.Background()); err != nil {
				s.deps.Logger.Errorf("iap: refresh receipt: %v", err)
				return
			}
			if err := s.RefreshSubscriptions(context.Background()); err != nil {
				s.deps.Logger.Errorf("iap: refresh subscriptions: %v", err)
			}
		}()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}

	s.mu.Lock()
	secret := s.sharedSecret
	s.mu.Unlock()

	payload := models.ReceiptValidationRequest{
		ReceiptData:            base64.StdEncoding.EncodeToString(receipt),
		Password:               secret,
		ExcludeOldTransactions: true,
	}

	resp, raw, err := s.postReceipt(ctx, s.cfg.VerifyURL, payload)
	if err != nil {
		s.deps.Logger.Errorf("iap: error validating receipt: %v", err)
		return err
	}

	// A sandbox receipt posted to the production endpoint is replayed against
	// sandbox instead of trusting the static environment switch.
	if resp.Status == models.ReceiptStatusSandboxReceipt && s.cfg.VerifyURL != s.cfg.SandboxVerifyURL {
		s.deps.Logger.Infof("iap: sandbox receipt on production endpoint, retrying against sandbox")
		resp, raw, err = s.postReceipt(ctx, s.cfg.SandboxVerifyURL, payload)
		if err != nil {
			s.deps.Logger.Errorf("iap: error validating receipt: %v", err)
			return err
		}
	}

	if s.deps.Archive != nil {
		name := fmt.Sprintf("receipt-%d.json", time.Now().UTC().UnixNano())
		if _, err := s.deps.Archive.ArchiveReceipt(raw, name); err != nil {
			s.deps.Logger.Errorf("iap: archive receipt: %v", err)
		}
	}

	s.applyReceipt(ctx, resp)
	return nil
}

func (s *Store) postReceipt(ctx context.Context, url string, payload models.ReceiptValidationRequest) (models.ReceiptValidationResponse, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.ReceiptValidationResponse{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.ReceiptValidationResponse{}, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.deps.HTTPClient.Do(req)
	if err != nil {
		return models.ReceiptValidationResponse{}, nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return models.ReceiptValidationResponse{}, nil, err
	}
	if httpResp.StatusCode >= 300 {
		return models.ReceiptValidationResponse{}, nil, fmt.Errorf("verify receipt: unexpected status %s", httpResp.Status)
	}

	var resp models.ReceiptValidationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.ReceiptValidationResponse{}, nil, fmt.Errorf("decode receipt response: %w", err)
	}
	return resp, raw, nil
}

// applyReceipt writes future expirations from latest_receipt_info into the
// entitlement store. A cancellation date takes precedence over the expiration
// date: a canceled auto-renewal expires at its cancellation time. Entries
// that fail to parse are skipped.
func (s *Store) applyReceipt(ctx context.Context, resp models.ReceiptValidationResponse) {
	now := time.Now()
	for _, entry := range resp.LatestReceiptInfo {
		if entry.ProductID == "" || entry.ExpiresDate == "" {
			s.deps.Logger.Errorf("iap: invalid receipt entry")
			continue
		}

		dateStr := entry.ExpiresDate
		if entry.CancellationDate != "" {
			dateStr = entry.CancellationDate
		}

		expires, err := parseReceiptDate(dateStr)
		if err != nil {
			s.deps.Logger.Errorf("iap: parse receipt date %q: %v", dateStr, err)
			continue
		}
		if !expires.After(now) {
			continue
		}

		s.mu.Lock()
		err = s.entitlements.SetExpiration(ctx, entry.ProductID, expires)
		s.mu.Unlock()
		if err != nil {
			s.deps.Logger.Errorf("iap: store expiration for %s: %v", entry.ProductID, err)
		}
	}
}

// parseReceiptDate parses the "yyyy-MM-dd HH:mm:ss ZONE" layout the
// verifyReceipt endpoint uses. The zone may be an abbreviation ("GMT") or an
// IANA name ("Etc/GMT").
func parseReceiptDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	idx := strings.LastIndex(value, " ")
	if idx < 0 {
		return time.Time{}, fmt.Errorf("missing zone in %q", value)
	}
	datetime, zone := value[:idx], value[idx+1:]

	if loc, err := time.LoadLocation(zone); err == nil {
		return time.ParseInLocation(receiptDateLayout, datetime, loc)
	}
	return time.Parse(receiptDateLayout+" MST", value)
}
