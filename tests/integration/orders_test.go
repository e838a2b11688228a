package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
	"github.com/hadia/wholesale-store/internal/pricing"
	"github.com/hadia/wholesale-store/internal/store"
)

func TestCreateOrderTotalsBelowShippingThreshold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected subtotal 100, got %s", order.Subtotal)
	}
	if !order.Tax.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected tax 10, got %s", order.Tax)
	}
	if !order.Shipping.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected shipping 50, got %s", order.Shipping)
	}
	if !order.Total.Equal(decimal.NewFromInt(160)) {
		t.Errorf("Expected total 160, got %s", order.Total)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("Unexpected order number format: %s", order.OrderNumber)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected status PENDING, got %s", order.Status)
	}
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 600, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 2, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.Subtotal.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected subtotal 1200, got %s", order.Subtotal)
	}
	if !order.Shipping.IsZero() {
		t.Errorf("Expected free shipping, got %s", order.Shipping)
	}
	if !order.Total.Equal(decimal.NewFromInt(1320)) {
		t.Errorf("Expected total 1320, got %s", order.Total)
	}
}

func TestCreateOrderAppliesTierDiscount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 700, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 3, SetType: pricing.TierQuarter},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	// 700 at 10% off is 630 per piece, 1890 for the quarter set.
	if len(order.Items) != 1 {
		t.Fatalf("Expected 1 order item, got %d", len(order.Items))
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(630)) {
		t.Errorf("Expected unit price 630, got %s", order.Items[0].UnitPrice)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(1890)) {
		t.Errorf("Expected subtotal 1890, got %s", order.Subtotal)
	}
	if !order.Total.Equal(decimal.NewFromInt(2079)) {
		t.Errorf("Expected total 2079, got %s", order.Total)
	}
}

func TestCreateOrderInsufficientStockIsAllOrNothing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	inStock := createTestProduct(t, db, 100, 50)
	lowStock := createTestProduct(t, db, 100, 2)

	// Put something in the cart so we can assert it survives the failure.
	if _, err := store.AddCartItem(ctx, db, user.ID, inStock.ID, pricing.TierSingle, 1); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: inStock.ID, Quantity: 5, SetType: pricing.TierSingle},
			{ProductID: lowStock.ID, Quantity: 3, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}
	if !strings.Contains(err.Error(), lowStock.Name) {
		t.Errorf("Error should name the offending product, got: %v", err)
	}

	for _, p := range []*models.Product{inStock, lowStock} {
		after, err := store.GetProduct(ctx, db, p.ID)
		if err != nil {
			t.Fatalf("Get product: %v", err)
		}
		if after.Stock != p.Stock {
			t.Errorf("Stock of %s should remain %d, got %d", p.Name, p.Stock, after.Stock)
		}
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE user_id = $1`, user.ID).Scan(&orderCount); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("Expected no orders, got %d", orderCount)
	}

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("Cart should be untouched after failed order, got %d items", len(cart.Items))
	}
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	if err := store.DeactivateProduct(ctx, db, product.ID); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if !errors.Is(err, database.ErrProductUnavailable) {
		t.Errorf("Expected product unavailable error, got: %v", err)
	}
}

func TestCreateOrderRejectsForeignAddress(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, _ := createTestUser(t, db)
	_, otherAddr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: otherAddr.ID,
		BillingAddressID:  otherAddr.ID,
	})
	if !errors.Is(err, database.ErrAddressNotFound) {
		t.Errorf("Expected address not found error, got: %v", err)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 50 {
		t.Errorf("Stock should remain 50, got %d", after.Stock)
	}
}

func TestCreateOrderClearsCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, pricing.TierQuarter, 3); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 3, SetType: pricing.TierQuarter},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Cart should be empty after checkout, got %d items", len(cart.Items))
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 47 {
		t.Errorf("Expected stock 47 after checkout, got %d", after.Stock)
	}
	if after.Version != product.Version+1 {
		t.Errorf("Stock decrement should bump version to %d, got %d", product.Version+1, after.Version)
	}
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 20)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Re-submit when the in-store retries give up under heavy
			// contention; the outcome that matters is success or a
			// definitive stock refusal.
			for {
				_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
					UserID: user.ID,
					Items: []store.OrderLineRequest{
						{ProductID: product.ID, Quantity: 3, SetType: pricing.TierSingle},
					},
					ShippingAddressID: addr.ID,
					BillingAddressID:  addr.ID,
				})
				if err != nil && database.IsRetryable(err) {
					continue
				}
				results <- err
				return
			}
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	// 20 pieces at 3 per order supports at most 6 orders.
	if successCount != 6 {
		t.Errorf("Expected 6 successful orders, got %d", successCount)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 20-successCount*3 {
		t.Errorf("Expected final stock %d, got %d", 20-successCount*3, after.Stock)
	}
	if after.Stock < 0 {
		t.Errorf("Stock went negative: %d", after.Stock)
	}
}

func TestGetOrderScopedToOwner(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	stranger, _ := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	fetched, err := store.GetOrderForUser(ctx, db, user.ID, order.ID)
	if err != nil {
		t.Fatalf("Owner should see the order: %v", err)
	}
	if len(fetched.Items) != 1 {
		t.Errorf("Expected 1 order item, got %d", len(fetched.Items))
	}
	if fetched.ShippingAddress == nil || fetched.ShippingAddress.ID != addr.ID {
		t.Error("Fetched order should carry the shipping address")
	}
	if fetched.BillingAddress == nil || fetched.BillingAddress.ID != addr.ID {
		t.Error("Fetched order should carry the billing address")
	}

	if _, err := store.GetOrderForUser(ctx, db, stranger.ID, order.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Stranger should get not-found, got: %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 100)

	for i := 0; i < 15; i++ {
		_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
			UserID: user.ID,
			Items: []store.OrderLineRequest{
				{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
			},
			ShippingAddressID: addr.ID,
			BillingAddressID:  addr.ID,
		})
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}

	// An order stamped ahead of the application clock must still show
	// up on the first page.
	var futureOrderID int64
	err := db.QueryRow(
		`UPDATE orders
		 SET created_at = NOW() + INTERVAL '1 hour'
		 WHERE id = (SELECT MAX(id) FROM orders WHERE user_id = $1)
		 RETURNING id`,
		user.ID).Scan(&futureOrderID)
	if err != nil {
		t.Fatalf("Shift order timestamp: %v", err)
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	orders := page1.Items.([]models.Order)
	if len(orders) != 10 {
		t.Fatalf("Expected 10 orders on page 1, got %d", len(orders))
	}
	if orders[0].ID != futureOrderID {
		t.Errorf("Future-stamped order %d should lead page 1, got %d", futureOrderID, orders[0].ID)
	}

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
	if rest := page2.Items.([]models.Order); len(rest) != 5 {
		t.Errorf("Expected 5 orders on page 2, got %d", len(rest))
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	// Skipping a step is rejected.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("PENDING -> SHIPPED should be rejected, got: %v", err)
	}

	for _, status := range []string{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		updated, err := store.UpdateOrderStatus(ctx, db, order.ID, status)
		if err != nil {
			t.Fatalf("Transition to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Errorf("Expected status %s, got %s", status, updated.Status)
		}
	}

	// DELIVERED is terminal.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCancelled); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("DELIVERED -> CANCELLED should be rejected, got: %v", err)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, "RETURNED"); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Unknown status should be rejected, got: %v", err)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, addr := createTestUser(t, db)
	product := createTestProduct(t, db, 100, 50)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderLineRequest{
			{ProductID: product.ID, Quantity: 1, SetType: pricing.TierSingle},
		},
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	updated, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if updated.Status != models.OrderStatusCancelled {
		t.Errorf("Expected CANCELLED, got %s", updated.Status)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusProcessing); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("CANCELLED should be terminal, got: %v", err)
	}
}
