package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solebid/internal/config"
	"solebid/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FedEx implements Adapter against the FedEx REST APIs using OAuth
// client-credentials authentication.
type FedEx struct {
	creds  config.CarrierCredentials
	client *http.Client
	logger *zap.Logger
	tokens *tokenSource
}

// NewFedEx creates a FedEx adapter. The timeout bounds every API call.
func NewFedEx(creds config.CarrierCredentials, timeout time.Duration, logger *zap.Logger) *FedEx {
	f := &FedEx{
		creds:  creds,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	f.tokens = newTokenSource(f.fetchToken)
	return f
}

func (f *FedEx) Name() domain.Carrier {
	return domain.CarrierFedEx
}

func (f *FedEx) IsConfigured() bool {
	return f.creds.APIKey != "" && f.creds.APISecret != ""
}

// Authenticate returns a bearer token, reusing the cached one while valid
func (f *FedEx) Authenticate(ctx context.Context) (string, error) {
	if !f.IsConfigured() {
		return "", ErrNotConfigured
	}
	return f.tokens.Token(ctx)
}

func (f *FedEx) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", f.creds.APIKey)
	form.Set("client_secret", f.creds.APISecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.creds.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build fedex auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: fedex auth returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("%w: decode fedex auth response: %v", ErrAuthenticationFailed, err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: fedex auth response missing token", ErrAuthenticationFailed)
	}

	return body.AccessToken, time.Duration(body.ExpiresIn) * time.Second, nil
}

type fedexRateResponse struct {
	Output struct {
		RateReplyDetails []struct {
			ServiceType string `json:"serviceType"`
			ServiceName string `json:"serviceName"`
			RatedShipmentDetails []struct {
				TotalNetCharge decimal.Decimal `json:"totalNetCharge"`
				Currency       string          `json:"currency"`
			} `json:"ratedShipmentDetails"`
			OperationalDetail struct {
				TransitDays  string `json:"transitDays"`
				DeliveryDate string `json:"deliveryDate"`
			} `json:"operationalDetail"`
		} `json:"rateReplyDetails"`
	} `json:"output"`
}

// GetRates quotes all available FedEx services for the shipment
func (f *FedEx) GetRates(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	payload := map[string]any{
		"accountNumber": map[string]string{"value": f.creds.AccountNumber},
		"requestedShipment": map[string]any{
			"shipper":   fedexParty(details.FromAddress),
			"recipient": fedexParty(details.ToAddress),
			"pickupType": "DROPOFF_AT_FEDEX_LOCATION",
			"rateRequestType": []string{"ACCOUNT", "LIST"},
			"requestedPackageLineItems": []map[string]any{fedexPackage(details)},
		},
	}

	var rateResp fedexRateResponse
	if err := f.post(ctx, "/rate/v1/rates/quotes", payload, &rateResp, ErrRateRequestFailed); err != nil {
		return nil, err
	}

	rates := make([]domain.CarrierRate, 0, len(rateResp.Output.RateReplyDetails))
	for _, detail := range rateResp.Output.RateReplyDetails {
		if len(detail.RatedShipmentDetails) == 0 {
			continue
		}

		rate := domain.CarrierRate{
			Carrier:     domain.CarrierFedEx,
			ServiceCode: detail.ServiceType,
			ServiceName: detail.ServiceName,
			Cost:        detail.RatedShipmentDetails[0].TotalNetCharge,
			Currency:    orDefault(detail.RatedShipmentDetails[0].Currency, "USD"),
			TransitTime: orDefault(detail.OperationalDetail.TransitDays, "Unknown"),
		}
		if ts, err := time.Parse(time.RFC3339, detail.OperationalDetail.DeliveryDate); err == nil {
			rate.DeliveryDate = &ts
		}
		rates = append(rates, rate)
	}

	return rates, nil
}

type fedexShipResponse struct {
	Output struct {
		TransactionShipments []struct {
			MasterTrackingNumber string `json:"masterTrackingNumber"`
			PieceResponses       []struct {
				PackageDocuments []struct {
					URL string `json:"url"`
				} `json:"packageDocuments"`
				NetRateAmount decimal.Decimal `json:"netRateAmount"`
			} `json:"pieceResponses"`
		} `json:"transactionShipments"`
	} `json:"output"`
}

// CreateLabel purchases a label for the selected service code
func (f *FedEx) CreateLabel(ctx context.Context, details *domain.ShipmentDetails) (*domain.LabelResult, error) {
	payload := map[string]any{
		"accountNumber": map[string]string{"value": f.creds.AccountNumber},
		"labelResponseOptions": "URL_ONLY",
		"requestedShipment": map[string]any{
			"shipper":       fedexParty(details.FromAddress),
			"recipients":    []map[string]any{fedexParty(details.ToAddress)},
			"serviceType":   details.ServiceCode,
			"packagingType": "YOUR_PACKAGING",
			"pickupType":    "DROPOFF_AT_FEDEX_LOCATION",
			"shippingChargesPayment": map[string]string{"paymentType": "SENDER"},
			"labelSpecification": map[string]string{
				"imageType":     "PDF",
				"labelStockType": "PAPER_4X6",
			},
			"requestedPackageLineItems": []map[string]any{fedexPackage(details)},
		},
	}

	var shipResp fedexShipResponse
	if err := f.post(ctx, "/ship/v1/shipments", payload, &shipResp, ErrLabelCreationFailed); err != nil {
		return nil, err
	}

	if len(shipResp.Output.TransactionShipments) == 0 {
		return nil, fmt.Errorf("%w: fedex ship response contained no shipments", ErrLabelCreationFailed)
	}
	shipment := shipResp.Output.TransactionShipments[0]

	result := &domain.LabelResult{
		Carrier:        domain.CarrierFedEx,
		TrackingNumber: shipment.MasterTrackingNumber,
		Currency:       "USD",
	}
	if len(shipment.PieceResponses) > 0 {
		result.Cost = shipment.PieceResponses[0].NetRateAmount
		if len(shipment.PieceResponses[0].PackageDocuments) > 0 {
			result.LabelURL = shipment.PieceResponses[0].PackageDocuments[0].URL
		}
	}

	return result, nil
}

type fedexTrackResponse struct {
	Output struct {
		CompleteTrackResults []struct {
			TrackResults []struct {
				LatestStatusDetail struct {
					StatusByLocale string `json:"statusByLocale"`
					Code           string `json:"code"`
				} `json:"latestStatusDetail"`
				DateAndTimes []struct {
					Type     string `json:"type"`
					DateTime string `json:"dateTime"`
				} `json:"dateAndTimes"`
				ScanEvents []struct {
					ScanLocation struct {
						City string `json:"city"`
					} `json:"scanLocation"`
				} `json:"scanEvents"`
			} `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

// TrackPackage returns normalized tracking state for one tracking number
func (f *FedEx) TrackPackage(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	payload := map[string]any{
		"includeDetailedScans": true,
		"trackingInfo": []map[string]any{
			{"trackingNumberInfo": map[string]string{"trackingNumber": trackingNumber}},
		},
	}

	var trackResp fedexTrackResponse
	if err := f.post(ctx, "/track/v1/trackingnumbers", payload, &trackResp, ErrTrackingFailed); err != nil {
		return nil, err
	}

	info := &domain.TrackingInfo{
		Carrier:        domain.CarrierFedEx,
		TrackingNumber: trackingNumber,
		Status:         domain.ShipmentStatusCreated,
	}

	if len(trackResp.Output.CompleteTrackResults) == 0 ||
		len(trackResp.Output.CompleteTrackResults[0].TrackResults) == 0 {
		return info, nil
	}
	result := trackResp.Output.CompleteTrackResults[0].TrackResults[0]

	info.StatusRaw = result.LatestStatusDetail.StatusByLocale
	info.Status = normalizeFedexStatus(result.LatestStatusDetail.Code)
	if len(result.ScanEvents) > 0 {
		info.Location = result.ScanEvents[0].ScanLocation.City
	}
	for _, dt := range result.DateAndTimes {
		if dt.Type == "ACTUAL_DELIVERY" || dt.Type == "ACTUAL_PICKUP" {
			if ts, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
				info.LastUpdate = &ts
			}
		}
	}

	return info, nil
}

func normalizeFedexStatus(code string) domain.ShipmentStatus {
	switch code {
	case "DL":
		return domain.ShipmentStatusDelivered
	case "IT", "OD", "PU", "DP", "AR":
		return domain.ShipmentStatusInTransit
	case "CA":
		return domain.ShipmentStatusCancelled
	default:
		return domain.ShipmentStatusCreated
	}
}

// post issues an authenticated JSON request and decodes the response.
// failKind is the sentinel wrapped on non-2xx responses.
func (f *FedEx) post(ctx context.Context, path string, payload any, out any, failKind error) error {
	token, err := f.Authenticate(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fedex request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.creds.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fedex request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.client.Do(req)
	if err != nil {
		return wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		f.tokens.Invalidate()
		return fmt.Errorf("%w: fedex returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: fedex %s returned status %d", failKind, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode fedex response: %v", failKind, err)
	}
	return nil
}

func fedexParty(addr domain.Address) map[string]any {
	streetLines := []string{addr.Line1}
	if addr.Line2 != "" {
		streetLines = append(streetLines, addr.Line2)
	}
	return map[string]any{
		"contact": map[string]string{
			"personName":  addr.Name,
			"phoneNumber": addr.Phone,
		},
		"address": map[string]any{
			"streetLines":         streetLines,
			"city":                addr.City,
			"stateOrProvinceCode": addr.State,
			"postalCode":          addr.Zip,
			"countryCode":         addr.Country,
		},
	}
}

func fedexPackage(details *domain.ShipmentDetails) map[string]any {
	return map[string]any{
		"weight": map[string]any{
			"units": "LB",
			"value": details.Weight,
		},
		"dimensions": map[string]any{
			"length": details.Dimensions.Length,
			"width":  details.Dimensions.Width,
			"height": details.Dimensions.Height,
			"units":  "IN",
		},
		"declaredValue": map[string]any{
			"amount":   details.DeclaredValue,
			"currency": "USD",
		},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
