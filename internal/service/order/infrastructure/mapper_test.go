package infrastructure

import (
	"testing"

	"github.com/shopspring/decimal"

	"orderdesk/internal/service/order/domain"
)

func TestMapper_RoundTrip(t *testing.T) {
	o := pendingOrder("m-1")
	o.Status = domain.StatusError
	o.ErrorMessage = domain.InternalErrorMessage

	model := FromDomainOrder(o)
	if !model.ErrorMessage.Valid {
		t.Fatal("error_message should be non-null")
	}
	if model.TableName() != "orders" {
		t.Fatalf("table = %s", model.TableName())
	}

	back := ToDomainOrder(model)
	if back.ID != o.ID || back.Status != o.Status || back.ErrorMessage != o.ErrorMessage {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if !back.LimitPrice.Decimal.Equal(decimal.RequireFromString("12.30")) {
		t.Errorf("price = %v", back.LimitPrice)
	}
}

func TestMapper_EmptyMessageIsNull(t *testing.T) {
	model := FromDomainOrder(pendingOrder("m-2"))
	if model.ErrorMessage.Valid {
		t.Error("pending order should store NULL error_message")
	}
	if ToDomainOrder(nil) != nil || FromDomainOrder(nil) != nil {
		t.Error("nil should map to nil")
	}
}
