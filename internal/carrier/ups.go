package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solebid/internal/config"
	"solebid/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// upsServiceNames maps UPS service codes to display names; the Rating API
// only returns the code.
var upsServiceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
}

// UPS implements Adapter against the UPS REST APIs
type UPS struct {
	creds  config.CarrierCredentials
	client *http.Client
	logger *zap.Logger
	tokens *tokenSource
}

// NewUPS creates a UPS adapter. The timeout bounds every API call.
func NewUPS(creds config.CarrierCredentials, timeout time.Duration, logger *zap.Logger) *UPS {
	u := &UPS{
		creds:  creds,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	u.tokens = newTokenSource(u.fetchToken)
	return u
}

func (u *UPS) Name() domain.Carrier {
	return domain.CarrierUPS
}

func (u *UPS) IsConfigured() bool {
	return u.creds.APIKey != "" && u.creds.APISecret != ""
}

func (u *UPS) Authenticate(ctx context.Context) (string, error) {
	if !u.IsConfigured() {
		return "", ErrNotConfigured
	}
	return u.tokens.Token(ctx)
}

func (u *UPS) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.creds.BaseURL+"/security/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build ups auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(u.creds.APIKey, u.creds.APISecret)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", 0, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: ups auth returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	// UPS returns expires_in as a string
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("%w: decode ups auth response: %v", ErrAuthenticationFailed, err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: ups auth response missing token", ErrAuthenticationFailed)
	}

	ttlSeconds, err := strconv.Atoi(body.ExpiresIn)
	if err != nil || ttlSeconds <= 0 {
		ttlSeconds = 3600
	}

	return body.AccessToken, time.Duration(ttlSeconds) * time.Second, nil
}

type upsRateResponse struct {
	RateResponse struct {
		RatedShipment []struct {
			Service struct {
				Code string `json:"Code"`
			} `json:"Service"`
			TotalCharges struct {
				MonetaryValue decimal.Decimal `json:"MonetaryValue"`
				CurrencyCode  string          `json:"CurrencyCode"`
			} `json:"TotalCharges"`
			GuaranteedDelivery struct {
				BusinessDaysInTransit string `json:"BusinessDaysInTransit"`
			} `json:"GuaranteedDelivery"`
		} `json:"RatedShipment"`
	} `json:"RateResponse"`
}

// GetRates shops all UPS services for the shipment
func (u *UPS) GetRates(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	payload := map[string]any{
		"RateRequest": map[string]any{
			"Request": map[string]any{
				"RequestOption": "Shop",
			},
			"Shipment": map[string]any{
				"Shipper":  upsParty(details.FromAddress, u.creds.AccountNumber),
				"ShipTo":   upsParty(details.ToAddress, ""),
				"ShipFrom": upsParty(details.FromAddress, ""),
				"Package":  upsPackage(details),
			},
		},
	}

	var rateResp upsRateResponse
	if err := u.post(ctx, "/api/rating/v1/Shop", payload, &rateResp, ErrRateRequestFailed); err != nil {
		return nil, err
	}

	rates := make([]domain.CarrierRate, 0, len(rateResp.RateResponse.RatedShipment))
	for _, rated := range rateResp.RateResponse.RatedShipment {
		code := rated.Service.Code
		name := upsServiceNames[code]
		if name == "" {
			name = "UPS Service " + code
		}

		rates = append(rates, domain.CarrierRate{
			Carrier:     domain.CarrierUPS,
			ServiceCode: code,
			ServiceName: name,
			Cost:        rated.TotalCharges.MonetaryValue,
			Currency:    orDefault(rated.TotalCharges.CurrencyCode, "USD"),
			TransitTime: orDefault(rated.GuaranteedDelivery.BusinessDaysInTransit, "Unknown"),
		})
	}

	return rates, nil
}

type upsShipResponse struct {
	ShipmentResponse struct {
		ShipmentResults struct {
			ShipmentIdentificationNumber string `json:"ShipmentIdentificationNumber"`
			ShipmentCharges              struct {
				TotalCharges struct {
					MonetaryValue decimal.Decimal `json:"MonetaryValue"`
					CurrencyCode  string          `json:"CurrencyCode"`
				} `json:"TotalCharges"`
			} `json:"ShipmentCharges"`
			PackageResults []struct {
				TrackingNumber string `json:"TrackingNumber"`
				ShippingLabel  struct {
					GraphicImage string `json:"GraphicImage"`
					URL          string `json:"URL"`
				} `json:"ShippingLabel"`
			} `json:"PackageResults"`
		} `json:"ShipmentResults"`
	} `json:"ShipmentResponse"`
}

// CreateLabel purchases a label for the selected service code
func (u *UPS) CreateLabel(ctx context.Context, details *domain.ShipmentDetails) (*domain.LabelResult, error) {
	payload := map[string]any{
		"ShipmentRequest": map[string]any{
			"Shipment": map[string]any{
				"Shipper":  upsParty(details.FromAddress, u.creds.AccountNumber),
				"ShipTo":   upsParty(details.ToAddress, ""),
				"ShipFrom": upsParty(details.FromAddress, ""),
				"Service": map[string]string{
					"Code": details.ServiceCode,
				},
				"Package": upsPackage(details),
				"PaymentInformation": map[string]any{
					"ShipmentCharge": map[string]any{
						"Type": "01",
						"BillShipper": map[string]string{
							"AccountNumber": u.creds.AccountNumber,
						},
					},
				},
			},
			"LabelSpecification": map[string]any{
				"LabelImageFormat": map[string]string{"Code": "PDF"},
			},
		},
	}

	var shipResp upsShipResponse
	if err := u.post(ctx, "/api/shipments/v1/ship", payload, &shipResp, ErrLabelCreationFailed); err != nil {
		return nil, err
	}

	results := shipResp.ShipmentResponse.ShipmentResults
	result := &domain.LabelResult{
		Carrier:        domain.CarrierUPS,
		TrackingNumber: results.ShipmentIdentificationNumber,
		Cost:           results.ShipmentCharges.TotalCharges.MonetaryValue,
		Currency:       orDefault(results.ShipmentCharges.TotalCharges.CurrencyCode, "USD"),
	}
	if len(results.PackageResults) > 0 {
		pkg := results.PackageResults[0]
		if pkg.TrackingNumber != "" {
			result.TrackingNumber = pkg.TrackingNumber
		}
		result.LabelURL = pkg.ShippingLabel.URL
	}
	if result.TrackingNumber == "" {
		return nil, fmt.Errorf("%w: ups ship response missing tracking number", ErrLabelCreationFailed)
	}

	return result, nil
}

type upsTrackResponse struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				Activity []struct {
					Status struct {
						Type        string `json:"type"`
						Description string `json:"description"`
					} `json:"status"`
					Location struct {
						Address struct {
							City string `json:"city"`
						} `json:"address"`
					} `json:"location"`
					Date string `json:"date"`
					Time string `json:"time"`
				} `json:"activity"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

// TrackPackage returns normalized tracking state for one tracking number
func (u *UPS) TrackPackage(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	token, err := u.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/track/v1/details/%s", u.creds.BaseURL, url.PathEscape(trackingNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build ups track request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("transId", trackingNumber)
	req.Header.Set("transactionSrc", "solebid")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		u.tokens.Invalidate()
		return nil, fmt.Errorf("%w: ups returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ups tracking returned status %d", ErrTrackingFailed, resp.StatusCode)
	}

	var trackResp upsTrackResponse
	if err := json.NewDecoder(resp.Body).Decode(&trackResp); err != nil {
		return nil, fmt.Errorf("%w: decode ups track response: %v", ErrTrackingFailed, err)
	}

	info := &domain.TrackingInfo{
		Carrier:        domain.CarrierUPS,
		TrackingNumber: trackingNumber,
		Status:         domain.ShipmentStatusCreated,
	}

	if len(trackResp.TrackResponse.Shipment) == 0 ||
		len(trackResp.TrackResponse.Shipment[0].Package) == 0 ||
		len(trackResp.TrackResponse.Shipment[0].Package[0].Activity) == 0 {
		return info, nil
	}
	latest := trackResp.TrackResponse.Shipment[0].Package[0].Activity[0]

	info.StatusRaw = latest.Status.Description
	info.Status = normalizeUPSStatus(latest.Status.Type)
	info.Location = latest.Location.Address.City
	if ts, err := time.Parse("20060102 150405", latest.Date+" "+latest.Time); err == nil {
		info.LastUpdate = &ts
	}

	return info, nil
}

func normalizeUPSStatus(statusType string) domain.ShipmentStatus {
	switch statusType {
	case "D":
		return domain.ShipmentStatusDelivered
	case "I", "O", "P":
		return domain.ShipmentStatusInTransit
	case "RS":
		return domain.ShipmentStatusCancelled
	default:
		return domain.ShipmentStatusCreated
	}
}

func (u *UPS) post(ctx context.Context, path string, payload any, out any, failKind error) error {
	token, err := u.Authenticate(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ups request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.creds.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ups request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.client.Do(req)
	if err != nil {
		return wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		u.tokens.Invalidate()
		return fmt.Errorf("%w: ups returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: ups %s returned status %d", failKind, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode ups response: %v", failKind, err)
	}
	return nil
}

func upsParty(addr domain.Address, accountNumber string) map[string]any {
	addressLines := []string{addr.Line1}
	if addr.Line2 != "" {
		addressLines = append(addressLines, addr.Line2)
	}

	party := map[string]any{
		"Name": addr.Name,
		"Address": map[string]any{
			"AddressLine":       addressLines,
			"City":              addr.City,
			"StateProvinceCode": addr.State,
			"PostalCode":        addr.Zip,
			"CountryCode":       addr.Country,
		},
	}
	if addr.Phone != "" {
		party["Phone"] = map[string]string{"Number": addr.Phone}
	}
	if accountNumber != "" {
		party["ShipperNumber"] = accountNumber
	}
	return party
}

func upsPackage(details *domain.ShipmentDetails) map[string]any {
	return map[string]any{
		"PackagingType": map[string]string{"Code": "02"},
		"Dimensions": map[string]any{
			"UnitOfMeasurement": map[string]string{"Code": "IN"},
			"Length":            strconv.Itoa(details.Dimensions.Length),
			"Width":             strconv.Itoa(details.Dimensions.Width),
			"Height":            strconv.Itoa(details.Dimensions.Height),
		},
		"PackageWeight": map[string]any{
			"UnitOfMeasurement": map[string]string{"Code": "LBS"},
			"Weight":            strconv.FormatFloat(details.Weight, 'f', 1, 64),
		},
	}
}
