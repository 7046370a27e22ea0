package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/google/uuid"
)

// BybitBroker executes orders on Bybit's unified trading account. Demo mode
// points at the paper-trading environment so live wiring can be exercised
// without real funds.
type BybitBroker struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
}

// BybitConfig holds the configuration for the Bybit broker
type BybitConfig struct {
	APIKey    string
	APISecret string
	Category  string // "spot", "linear", "inverse"
	Testnet   bool
	Demo      bool
}

func NewBybitBroker(config BybitConfig) *BybitBroker {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := config.Category
	if category == "" {
		category = "spot"
	}
	return &BybitBroker{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

func (b *BybitBroker) GetName() string {
	if b.demo {
		return "bybit-demo"
	}
	if b.testnet {
		return "bybit-testnet"
	}
	return "bybit"
}

func (b *BybitBroker) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get ticker: %w", err)
	}

	resultMap, err := unwrapResponse(result)
	if err != nil {
		return 0, err
	}

	var tickers struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultMap, &tickers); err != nil {
		return 0, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	if len(tickers.List) == 0 {
		return 0, fmt.Errorf("no ticker data for symbol %s", symbol)
	}

	price, err := strconv.ParseFloat(tickers.List[0].LastPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid last price %q: %w", tickers.List[0].LastPrice, err)
	}
	return price, nil
}

func (b *BybitBroker) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (*Order, error) {
	params := map[string]interface{}{
		"orderType": "Market",
	}
	return b.placeOrder(ctx, symbol, side, quantity, OrderTypeMarket, params)
}

func (b *BybitBroker) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, quantity, limitPrice float64) (*Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("limit price must be positive, got %.8f", limitPrice)
	}
	params := map[string]interface{}{
		"orderType": "Limit",
		"price":     strconv.FormatFloat(limitPrice, 'f', -1, 64),
	}
	order, err := b.placeOrder(ctx, symbol, side, quantity, OrderTypeLimit, params)
	if err != nil {
		return nil, err
	}
	order.LimitPrice = limitPrice
	return order, nil
}

func (b *BybitBroker) PlaceStopOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice float64) (*Order, error) {
	if stopPrice <= 0 {
		return nil, fmt.Errorf("stop price must be positive, got %.8f", stopPrice)
	}
	// trigger direction 1 fires on rise, 2 on fall
	direction := 1
	if side == OrderSideSell {
		direction = 2
	}
	params := map[string]interface{}{
		"orderType":        "Market",
		"triggerPrice":     strconv.FormatFloat(stopPrice, 'f', -1, 64),
		"triggerDirection": direction,
	}
	order, err := b.placeOrder(ctx, symbol, side, quantity, OrderTypeStop, params)
	if err != nil {
		return nil, err
	}
	order.StopPrice = stopPrice
	return order, nil
}

func (b *BybitBroker) placeOrder(ctx context.Context, symbol string, side OrderSide, quantity float64, orderType OrderType, extra map[string]interface{}) (*Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %.8f", quantity)
	}

	orderLinkID := uuid.NewString()
	params := map[string]interface{}{
		"category":    b.category,
		"symbol":      symbol,
		"side":        string(side),
		"qty":         strconv.FormatFloat(quantity, 'f', -1, 64),
		"orderLinkId": orderLinkID,
	}
	for key, value := range extra {
		params[key] = value
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	resultMap, err := unwrapResponse(result)
	if err != nil {
		return nil, err
	}

	var placed struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(resultMap, &placed); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	status := OrderStatusNew
	if orderType == OrderTypeMarket {
		status = OrderStatusFilled
	}
	return &Order{
		ID:        placed.OrderID,
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (b *BybitBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if _, err := unwrapResponse(result); err != nil {
		return err
	}
	return nil
}

func (b *BybitBroker) GetPositions(ctx context.Context) (map[string]float64, error) {
	params := map[string]interface{}{
		"category":   b.category,
		"settleCoin": "USDT",
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	resultMap, err := unwrapResponse(result)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultMap, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse position response: %w", err)
	}

	positions := make(map[string]float64, len(payload.List))
	for _, p := range payload.List {
		size, err := strconv.ParseFloat(p.Size, 64)
		if err != nil || size == 0 {
			continue
		}
		if p.Side == "Sell" {
			size = -size
		}
		positions[p.Symbol] += size
	}
	return positions, nil
}

func (b *BybitBroker) GetBalance(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get account balance: %w", err)
	}

	resultMap, err := unwrapResponse(result)
	if err != nil {
		return 0, err
	}

	var wallet struct {
		List []struct {
			TotalAvailableBalance string `json:"totalAvailableBalance"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultMap, &wallet); err != nil {
		return 0, fmt.Errorf("failed to parse balance response: %w", err)
	}
	if len(wallet.List) == 0 {
		return 0, fmt.Errorf("no unified account in balance response")
	}

	balance, err := strconv.ParseFloat(wallet.List[0].TotalAvailableBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q: %w", wallet.List[0].TotalAvailableBalance, err)
	}
	return balance, nil
}

func (b *BybitBroker) GetAccount(ctx context.Context) (*Account, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	resultMap, err := unwrapResponse(result)
	if err != nil {
		return nil, err
	}

	var wallet struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultMap, &wallet); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}
	if len(wallet.List) == 0 {
		return nil, fmt.Errorf("no unified account in account response")
	}

	cash, err := strconv.ParseFloat(wallet.List[0].TotalAvailableBalance, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", wallet.List[0].TotalAvailableBalance, err)
	}
	equity, err := strconv.ParseFloat(wallet.List[0].TotalEquity, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid equity %q: %w", wallet.List[0].TotalEquity, err)
	}
	return &Account{Cash: cash, Equity: equity}, nil
}

// unwrapResponse checks the API return code and re-marshals the result
// payload for typed decoding.
func unwrapResponse(response interface{}) ([]byte, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return resultBytes, nil
}
