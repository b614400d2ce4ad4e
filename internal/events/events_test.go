package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/online_shop/internal/es"
	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/internal/mykafka"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

type sinkFunc func(ctx context.Context, ev Event) error

func (f sinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		Number:        "ORD-20261015-ABC123",
		UserID:        uuid.New(),
		Status:        models.OrderStatusCompleted,
		TotalAmount:   decimal.RequireFromString("39.98"),
		Currency:      "USD",
		PaymentMethod: "card",
		Items: []models.OrderItem{{
			ProductID: uuid.New(),
			Product:   &models.Product{Name: "widget"},
			LineNo:    1,
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("19.99"),
			Subtotal:  decimal.RequireFromString("39.98"),
		}},
	}
}

func TestKafkaSink_KeysByUser(t *testing.T) {
	w := &captureWriter{}
	sink := &KafkaSink{Producer: mykafka.NewProducerWithWriter(w), Topic: "order_events"}
	o := sampleOrder()

	require.NoError(t, sink.Publish(context.Background(), NewOrderCompleted(o)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order_events", w.msgs[0].Topic)
	assert.Equal(t, o.UserID.String(), string(w.msgs[0].Key))

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, OrderCompleted, ev.Type)
	assert.Equal(t, o.ID, ev.OrderID)
}

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	var calls int
	okSink := sinkFunc(func(context.Context, Event) error { calls++; return nil })
	errA := errors.New("a down")
	errB := errors.New("b down")

	f := Fanout{
		sinkFunc(func(context.Context, Event) error { calls++; return errA }),
		okSink,
		sinkFunc(func(context.Context, Event) error { calls++; return errB }),
	}
	err := f.Publish(context.Background(), NewOrderCompleted(sampleOrder()))
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.NoError(t, Fanout{okSink}.Publish(context.Background(), Event{}))
}

func TestSearchSink_IndexesCompletedOrders(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		doc   orderDocument
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"9.0.0"}}`))
			return
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&doc)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client, err := es.NewClient(ctx, es.Config{URL: srv.URL})
	require.NoError(t, err)
	sink := &SearchSink{Client: client}

	o := sampleOrder()
	require.NoError(t, sink.Publish(ctx, NewOrderCompleted(o)))

	item := &models.ReconciliationItem{UserID: o.UserID, OrderID: uuid.New()}
	require.NoError(t, sink.Publish(ctx, NewReconciliationRequired(item)))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/orders/_doc/" + o.ID.String()}, paths)
	assert.Equal(t, "39.98", doc.TotalAmount)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "widget", doc.Items[0].Name)
	assert.Equal(t, "19.99", doc.Items[0].UnitPrice)
}
