package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"

	"folioAPI/internal/billing"
	"folioAPI/internal/types/subscription"
)

const DefaultLemonSqueezyAPIURL = "https://api.lemonsqueezy.com/v1"

var (
	ErrProviderNotConfigured = errors.New("payment provider is not configured")
	ErrPlanNotAvailable      = errors.New("plan is not available for this provider")
)

// PaddleClient is the slice of *paddle.SDK the service calls.
type PaddleClient interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
	ListPrices(ctx context.Context, req *paddle.ListPricesRequest) (*paddle.Collection[*paddle.Price], error)
}

type CheckoutRecorder interface {
	RecordCheckout(ctx context.Context, rec CheckoutRecord) error
}

type LemonSqueezyConfig struct {
	APIKey  string
	StoreID string
	BaseURL string
	Catalog billing.PlanCatalog
}

type PaddleConfig struct {
	Client  PaddleClient
	Sandbox bool
	Catalog billing.PlanCatalog
}

type CheckoutService struct {
	lemonSqueezy LemonSqueezyConfig
	paddle       PaddleConfig
	httpClient   *http.Client
	redirectURL  string
	recorder     CheckoutRecorder
}

func NewCheckoutService(ls LemonSqueezyConfig, pd PaddleConfig, appBaseURL string, recorder CheckoutRecorder) *CheckoutService {
	if ls.BaseURL == "" {
		ls.BaseURL = DefaultLemonSqueezyAPIURL
	}
	return &CheckoutService{
		lemonSqueezy: ls,
		paddle:       pd,
		httpClient:   cleanhttp.DefaultPooledClient(),
		redirectURL:  strings.TrimRight(appBaseURL, "/") + "/dashboard?checkout=success",
		recorder:     recorder,
	}
}

// CreateCheckout opens a hosted checkout for userID. The user id travels in
// the provider's custom data so the resulting webhooks can be joined back.
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID string, req subscription.CheckoutRequest) (*subscription.CheckoutResponse, error) {
	var (
		resp *subscription.CheckoutResponse
		err  error
	)

	switch req.Provider {
	case subscription.ProviderLemonSqueezy:
		resp, err = s.createLemonSqueezyCheckout(ctx, userID, strings.TrimSpace(req.Email), req.Plan)
	case subscription.ProviderPaddle:
		resp, err = s.createPaddleCheckout(ctx, userID, req.Plan)
	default:
		err = billing.ErrUnknownProvider
	}

	s.recordCheckout(ctx, userID, req, resp, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *CheckoutService) createPaddleCheckout(ctx context.Context, userID string, plan subscription.PlanType) (*subscription.CheckoutResponse, error) {
	if s.paddle.Client == nil {
		return nil, ErrProviderNotConfigured
	}
	priceID := s.paddle.Catalog.IDFor(plan)
	if priceID == "" {
		return nil, ErrPlanNotAvailable
	}

	createReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  priceID,
			}),
		},
		CustomData: paddle.CustomData{
			"userId": userID,
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
		Checkout: &paddle.TransactionCheckout{
			URL: &s.redirectURL,
		},
	}

	tx, err := s.paddle.Client.CreateTransaction(ctx, createReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	host := "checkout"
	if s.paddle.Sandbox {
		host = "sandbox-checkout"
	}

	return &subscription.CheckoutResponse{
		CheckoutURL: fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", host, tx.ID),
		CheckoutID:  tx.ID,
	}, nil
}

type lemonSqueezyResource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type lemonSqueezyCheckoutRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CheckoutData struct {
				Email  string            `json:"email,omitempty"`
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
			ProductOptions struct {
				RedirectURL string `json:"redirect_url"`
			} `json:"product_options"`
		} `json:"attributes"`
		Relationships struct {
			Store struct {
				Data lemonSqueezyResource `json:"data"`
			} `json:"store"`
			Variant struct {
				Data lemonSqueezyResource `json:"data"`
			} `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

type lemonSqueezyCheckoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (s *CheckoutService) createLemonSqueezyCheckout(ctx context.Context, userID, email string, plan subscription.PlanType) (*subscription.CheckoutResponse, error) {
	if s.lemonSqueezy.APIKey == "" || s.lemonSqueezy.StoreID == "" {
		return nil, ErrProviderNotConfigured
	}
	variantID := s.lemonSqueezy.Catalog.IDFor(plan)
	if variantID == "" {
		return nil, ErrPlanNotAvailable
	}

	var body lemonSqueezyCheckoutRequest
	body.Data.Type = "checkouts"
	body.Data.Attributes.CheckoutData.Email = email
	body.Data.Attributes.CheckoutData.Custom = map[string]string{"user_id": userID}
	body.Data.Attributes.ProductOptions.RedirectURL = s.redirectURL
	body.Data.Relationships.Store.Data = lemonSqueezyResource{Type: "stores", ID: s.lemonSqueezy.StoreID}
	body.Data.Relationships.Variant.Data = lemonSqueezyResource{Type: "variants", ID: variantID}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.lemonSqueezy.BaseURL+"/checkouts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/vnd.api+json")
	httpReq.Header.Set("Content-Type", "application/vnd.api+json")
	httpReq.Header.Set("Authorization", "Bearer "+s.lemonSqueezy.APIKey)

	res, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call lemonsqueezy: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read lemonsqueezy response: %w", err)
	}

	var decoded lemonSqueezyCheckoutResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode lemonsqueezy response (status %d): %w", res.StatusCode, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		detail := http.StatusText(res.StatusCode)
		if len(decoded.Errors) > 0 && decoded.Errors[0].Detail != "" {
			detail = decoded.Errors[0].Detail
		}
		return nil, fmt.Errorf("lemonsqueezy checkout failed with status %d: %s", res.StatusCode, detail)
	}

	if decoded.Data.Attributes.URL == "" {
		return nil, errors.New("lemonsqueezy response did not include a checkout url")
	}

	return &subscription.CheckoutResponse{
		CheckoutURL: decoded.Data.Attributes.URL,
		CheckoutID:  decoded.Data.ID,
	}, nil
}

func (s *CheckoutService) recordCheckout(ctx context.Context, userID string, req subscription.CheckoutRequest, resp *subscription.CheckoutResponse, err error) {
	if s.recorder == nil {
		return
	}
	rec := CheckoutRecord{
		UserID:   userID,
		Provider: req.Provider,
		Plan:     req.Plan,
	}
	if resp != nil {
		rec.CheckoutID = resp.CheckoutID
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if recErr := s.recorder.RecordCheckout(ctx, rec); recErr != nil {
		log.Ctx(ctx).Warn().Err(recErr).Str("user_id", userID).Msg("Failed to record checkout attempt")
	}
}

type Price struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
	PlanType    string `json:"planType,omitempty"`
}

// ListPrices returns the active Paddle prices, tagged with the plan they map to.
func (s *CheckoutService) ListPrices(ctx context.Context) ([]Price, error) {
	if s.paddle.Client == nil {
		return nil, ErrProviderNotConfigured
	}

	priceCollection, err := s.paddle.Client.ListPrices(ctx, &paddle.ListPricesRequest{
		Status: []string{string(paddle.StatusActive)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	prices := []Price{}
	for {
		result := priceCollection.Next(ctx)
		if !result.Ok() {
			if err := result.Err(); err != nil {
				return nil, fmt.Errorf("failed to iterate prices: %w", err)
			}
			break
		}

		p := result.Value()
		interval := ""
		if p.BillingCycle != nil {
			interval = string(p.BillingCycle.Interval)
		}

		prices = append(prices, Price{
			ID:          p.ID,
			ProductID:   p.ProductID,
			Description: p.Description,
			Amount:      p.UnitPrice.Amount,
			Currency:    string(p.UnitPrice.CurrencyCode),
			Interval:    interval,
			PlanType:    string(s.paddle.Catalog.PlanFor(p.ID)),
		})
	}

	return prices, nil
}
