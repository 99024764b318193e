// Package platform talks to the external commerce platform: catalog reads
// over its GraphQL storefront API, checkout-session creation, and customer
// lookup over its admin REST API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/procktails/storefront/internal/domain"
)

const (
	defaultAPIVersion = "2024-01"
	defaultTimeout    = 10 * time.Second
	catalogPageSize   = 50
)

type Config struct {
	StoreDomain   string
	AccessToken   string
	WebhookSecret string
	APIVersion    string
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Client{
		cfg:     cfg,
		baseURL: "https://" + cfg.StoreDomain,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

const catalogQuery = `
query getProducts($first: Int!) {
  products(first: $first) {
    edges {
      node {
        id
        title
        description
        priceRangeV2 {
          minVariantPrice {
            amount
            currencyCode
          }
        }
        images(first: 5) {
          edges {
            node {
              url
              altText
            }
          }
        }
        variants(first: 10) {
          edges {
            node {
              id
              title
              sku
              price
              compareAtPrice
              currentlyNotInStock
              quantityAvailable
            }
          }
        }
        tags
      }
    }
  }
}`

type productsResponse struct {
	Products struct {
		Edges []struct {
			Node struct {
				ID           string `json:"id"`
				Title        string `json:"title"`
				Description  string `json:"description"`
				PriceRangeV2 struct {
					MinVariantPrice struct {
						Amount       string `json:"amount"`
						CurrencyCode string `json:"currencyCode"`
					} `json:"minVariantPrice"`
				} `json:"priceRangeV2"`
				Images struct {
					Edges []struct {
						Node struct {
							URL     string `json:"url"`
							AltText string `json:"altText"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"images"`
				Variants struct {
					Edges []struct {
						Node struct {
							ID                  string  `json:"id"`
							Title               string  `json:"title"`
							SKU                 string  `json:"sku"`
							Price               string  `json:"price"`
							CompareAtPrice      *string `json:"compareAtPrice"`
							CurrentlyNotInStock bool    `json:"currentlyNotInStock"`
							QuantityAvailable   int     `json:"quantityAvailable"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
				Tags []string `json:"tags"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

// FetchCatalog pulls the full product batch from the storefront API.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	var resp productsResponse
	err := c.graphql(ctx, catalogQuery, map[string]interface{}{"first": catalogPageSize}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(resp.Products.Edges))
	for _, edge := range resp.Products.Edges {
		node := edge.Node
		price, _ := strconv.ParseFloat(node.PriceRangeV2.MinVariantPrice.Amount, 64)

		entry := domain.CatalogEntry{
			ProductID:   node.ID,
			Title:       node.Title,
			Description: node.Description,
			Price:       price,
			Currency:    node.PriceRangeV2.MinVariantPrice.CurrencyCode,
			Tags:        node.Tags,
		}

		for _, img := range node.Images.Edges {
			entry.Images = append(entry.Images, domain.ProductImage{
				URL: img.Node.URL,
				Alt: img.Node.AltText,
			})
		}

		for _, v := range node.Variants.Edges {
			variantPrice, _ := strconv.ParseFloat(v.Node.Price, 64)
			variant := domain.ProductVariant{
				ID:                v.Node.ID,
				Title:             v.Node.Title,
				SKU:               v.Node.SKU,
				Price:             variantPrice,
				InStock:           !v.Node.CurrentlyNotInStock,
				QuantityAvailable: v.Node.QuantityAvailable,
			}
			if v.Node.CompareAtPrice != nil {
				compareAt, err := strconv.ParseFloat(*v.Node.CompareAtPrice, 64)
				if err == nil {
					variant.CompareAtPrice = &compareAt
				}
			}
			entry.Variants = append(entry.Variants, variant)
			entry.InventoryCount += v.Node.QuantityAvailable
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

const checkoutCreateMutation = `
mutation checkoutCreate($input: CheckoutCreateInput!) {
  checkoutCreate(input: $input) {
    checkout {
      id
      webUrl
    }
    checkoutUserErrors {
      code
      field
      message
    }
  }
}`

type checkoutCreateResponse struct {
	CheckoutCreate struct {
		Checkout struct {
			ID     string `json:"id"`
			WebURL string `json:"webUrl"`
		} `json:"checkout"`
		CheckoutUserErrors []struct {
			Code    string   `json:"code"`
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"checkoutUserErrors"`
	} `json:"checkoutCreate"`
}

// CreateCheckout opens a payable session for the given lines and returns its
// id and redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, lines []domain.ProposedLine, customerEmail string) (domain.CheckoutSession, error) {
	lineItems := make([]map[string]interface{}, len(lines))
	for i, line := range lines {
		lineItems[i] = map[string]interface{}{
			"variantId": line.ProductID,
			"quantity":  line.Quantity,
		}
	}

	input := map[string]interface{}{"lineItems": lineItems}
	if customerEmail != "" {
		input["email"] = customerEmail
	}

	var resp checkoutCreateResponse
	err := c.graphql(ctx, checkoutCreateMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to create checkout: %w", err)
	}

	if errs := resp.CheckoutCreate.CheckoutUserErrors; len(errs) > 0 {
		return domain.CheckoutSession{}, fmt.Errorf("checkout rejected by platform: %s", errs[0].Message)
	}

	return domain.CheckoutSession{
		ID:  resp.CheckoutCreate.Checkout.ID,
		URL: resp.CheckoutCreate.Checkout.WebURL,
	}, nil
}

type Customer struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

// FindCustomerByEmail returns nil when no customer matches.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	endpoint := c.adminURL("customers/search.json") + "?query=" + url.QueryEscape("email:"+email)

	var resp struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.rest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to search customer: %w", err)
	}
	if len(resp.Customers) == 0 {
		return nil, nil
	}
	return &resp.Customers[0], nil
}

// EnsureCustomer makes sure a customer record exists for the email, creating
// one when the search comes back empty. Checkouts created afterwards are
// attributed to that record by the platform.
func (c *Client) EnsureCustomer(ctx context.Context, email string) error {
	existing, err := c.FindCustomerByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := c.CreateCustomer(ctx, email, "", ""); err != nil {
		return err
	}
	return nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, firstName, lastName string) (*Customer, error) {
	body := map[string]interface{}{
		"customer": map[string]interface{}{
			"email":      email,
			"first_name": firstName,
			"last_name":  lastName,
		},
	}

	var resp struct {
		Customer Customer `json:"customer"`
	}
	if err := c.rest(ctx, http.MethodPost, c.adminURL("customers.json"), body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &resp.Customer, nil
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/%s/graphql.json", c.baseURL, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Storefront-Access-Token", c.cfg.AccessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql request returned status %d", res.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.cfg.APIVersion, path)
}

func (c *Client) rest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", c.cfg.AccessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("request returned status %d", res.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
