package execution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/quantloop/core/pkg/types"
)

// PolymarketConfig configures the HMAC-signed REST reference adapter
// (spec §4.4, §6).
type PolymarketConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Timeout    time.Duration
}

// DefaultPolymarketConfig returns spec §6's stated defaults.
func DefaultPolymarketConfig() PolymarketConfig {
	return PolymarketConfig{
		BaseURL: "https://clob.polymarket.com",
		Timeout: 10 * time.Second,
	}
}

// PolymarketAdapter implements Adapter against the Polymarket CLOB REST API
// (spec §4.4, §6): request signing via HMAC-SHA256 of
// timestamp+method+path+body, headers api-key/signature/timestamp/passphrase.
type PolymarketAdapter struct {
	cfg    PolymarketConfig
	client *http.Client
}

// NewPolymarketAdapter constructs an adapter bound to cfg. A finite timeout
// is enforced; the zero value falls back to the 10s default.
func NewPolymarketAdapter(cfg PolymarketConfig) *PolymarketAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PolymarketAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *PolymarketAdapter) VenueID() types.VenueId { return "polymarket" }

func (a *PolymarketAdapter) sign(method, path string, body []byte) (timestamp, signature string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(a.cfg.APISecret))
	mac.Write([]byte(ts + method + path + string(body)))
	return ts, hex.EncodeToString(mac.Sum(nil))
}

func (a *PolymarketAdapter) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	ts, sig := a.sign(method, path, body)

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, types.NewExecError(types.ErrInternal, "build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.cfg.APIKey)
	req.Header.Set("timestamp", ts)
	req.Header.Set("signature", sig)
	req.Header.Set("passphrase", a.cfg.Passphrase)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, types.NewExecError(types.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, types.NewExecError(types.ErrInvalidResponse, err.Error())
	}
	return respBody, resp.StatusCode, nil
}

// polymarketOrderWire is the venue-specific wire encoding of an Order
// (spec §6: "fields serialize the order exactly as defined in §3 with
// venue-specific enum spellings mapped in the adapter").
type polymarketOrderWire struct {
	ClientOrderID string `json:"client_order_id"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Type          string `json:"order_type"`
	TimeInForce   string `json:"time_in_force"`
	Price         string `json:"price,omitempty"`
	Size          string `json:"size"`
}

func toWireOrder(o *types.Order) polymarketOrderWire {
	w := polymarketOrderWire{
		ClientOrderID: string(o.ClientOrderID),
		Market:        string(o.Market),
		Side:          mapSideOut(o.Side),
		Type:          mapTypeOut(o.Type),
		TimeInForce:   mapTIFOut(o.TIF),
		Size:          o.RequestedSize.String(),
	}
	if o.Price != nil {
		w.Price = o.Price.String()
	}
	return w
}

func mapSideOut(s types.OrderSide) string {
	if s == types.SideBuy {
		return "BUY"
	}
	return "SELL"
}

func mapTypeOut(t types.OrderType) string {
	switch t {
	case types.OrderTypeMarket:
		return "MARKET"
	case types.OrderTypePostOnly:
		return "POST_ONLY"
	default:
		return "LIMIT"
	}
}

func mapTIFOut(t types.TimeInForce) string {
	switch t {
	case types.TIFImmediateOrCancel:
		return "IOC"
	case types.TIFFillOrKill:
		return "FOK"
	default:
		return "GTC"
	}
}

// mapStatusIn normalizes the venue's status vocabulary to the shared enum.
func mapStatusIn(venueStatus string) types.OrderStatus {
	switch venueStatus {
	case "OPEN", "LIVE":
		return types.OrderStatusWorking
	case "PARTIAL", "PARTIALLY_FILLED":
		return types.OrderStatusPartiallyFilled
	case "FILLED", "MATCHED":
		return types.OrderStatusFilled
	case "CANCELLED", "CANCELED":
		return types.OrderStatusCancelled
	case "REJECTED":
		return types.OrderStatusRejected
	case "EXPIRED":
		return types.OrderStatusExpired
	default:
		return types.OrderStatusSubmitting
	}
}

type polymarketAckWire struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (a *PolymarketAdapter) PlaceOrder(ctx context.Context, order *types.Order) (OrderAck, error) {
	body, _ := json.Marshal(toWireOrder(order))
	respBody, status, err := a.do(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return OrderAck{}, err
	}
	if status >= 500 {
		return OrderAck{}, types.NewExecError(types.ErrVenue, "server error placing order")
	}
	if status == http.StatusUnauthorized {
		return OrderAck{}, types.NewExecError(types.ErrAuthentication, "unauthorized")
	}
	var ack polymarketAckWire
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return OrderAck{}, types.NewExecError(types.ErrInvalidResponse, "malformed place-order response")
	}
	return OrderAck{VenueOrderID: ack.OrderID, Status: mapStatusIn(ack.Status)}, nil
}

func (a *PolymarketAdapter) CancelOrder(ctx context.Context, orderID types.OrderId) (CancelAck, error) {
	body, _ := json.Marshal(map[string]string{"order_id": string(orderID)})
	respBody, status, err := a.do(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return CancelAck{}, err
	}
	if status == http.StatusNotFound {
		return CancelAck{}, types.NewExecError(types.ErrOrderNotFound, "order not found on venue")
	}
	var ack polymarketAckWire
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return CancelAck{}, types.NewExecError(types.ErrInvalidResponse, "malformed cancel response")
	}
	return CancelAck{Status: mapStatusIn(ack.Status)}, nil
}

func (a *PolymarketAdapter) ModifyOrder(ctx context.Context, orderID types.OrderId, newPrice, newSize *string) (OrderAck, error) {
	if newPrice == nil && newSize == nil {
		return OrderAck{}, types.NewExecError(types.ErrValidation, "modify requires at least one of price/size")
	}
	payload := map[string]string{"order_id": string(orderID)}
	if newPrice != nil {
		payload["price"] = *newPrice
	}
	if newSize != nil {
		payload["size"] = *newSize
	}
	body, _ := json.Marshal(payload)
	respBody, _, err := a.do(ctx, http.MethodPatch, "/order", body)
	if err != nil {
		return OrderAck{}, err
	}
	var ack polymarketAckWire
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return OrderAck{}, types.NewExecError(types.ErrInvalidResponse, "malformed modify response")
	}
	return OrderAck{VenueOrderID: ack.OrderID, Status: mapStatusIn(ack.Status)}, nil
}

func (a *PolymarketAdapter) GetOrderStatus(ctx context.Context, orderID types.OrderId) (types.OrderStatus, error) {
	path := fmt.Sprintf("/order?order_id=%s", orderID)
	respBody, status, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", types.NewExecError(types.ErrOrderNotFound, "order not found on venue")
	}
	var ack polymarketAckWire
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return "", types.NewExecError(types.ErrInvalidResponse, "malformed status response")
	}
	return mapStatusIn(ack.Status), nil
}

func (a *PolymarketAdapter) GetOpenOrders(ctx context.Context) ([]types.Order, error) {
	respBody, _, err := a.do(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}
	var wire []polymarketAckWire
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, types.NewExecError(types.ErrInvalidResponse, "malformed open-orders response")
	}
	out := make([]types.Order, 0, len(wire))
	for _, w := range wire {
		out = append(out, types.Order{VenueOrderID: w.OrderID, Status: mapStatusIn(w.Status)})
	}
	return out, nil
}

func (a *PolymarketAdapter) HealthCheck(ctx context.Context) (bool, error) {
	_, status, err := a.do(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return false, err
	}
	return status < 500, nil
}
