package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"karatpos/internal/domain"
	"karatpos/internal/store"
)

// envelope keeps the domain document under "doc" so domain types need no bson tags.
type envelope[T any] struct {
	ID  string `bson:"_id"`
	Doc T      `bson:"doc"`
}

// tx runs inside a session transaction. Write conflicts are detected by the
// server on documents this transaction writes.
type tx struct {
	store.Phase
	db *mongodriver.Database
}

var _ store.Tx = (*tx)(nil)

func getDoc[T any](ctx context.Context, coll *mongodriver.Collection, id string) (T, error) {
	var env envelope[T]
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&env); err != nil {
		var zero T
		return zero, mapError(err)
	}
	return env.Doc, nil
}

func findDocs[T any](ctx context.Context, coll *mongodriver.Collection, filter bson.M, sort bson.D) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var envs []envelope[T]
	if err := cursor.All(ctx, &envs); err != nil {
		return nil, mapError(err)
	}
	out := make([]T, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Doc)
	}
	return out, nil
}

func putDoc[T any](ctx context.Context, coll *mongodriver.Collection, id string, doc T) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, envelope[T]{ID: id, Doc: doc}, options.Replace().SetUpsert(true))
	return mapError(err)
}

func deleteDoc(ctx context.Context, coll *mongodriver.Collection, id string) (int64, error) {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, mapError(err)
	}
	return res.DeletedCount, nil
}

func (t *tx) GetSettings(ctx context.Context) (domain.Settings, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Settings{}, err
	}
	return getDoc[domain.Settings](ctx, t.db.Collection(colSettings), settingsID)
}

func (t *tx) GetCounter(ctx context.Context, name string) (domain.SequenceCounter, error) {
	if err := t.BeginRead(); err != nil {
		return domain.SequenceCounter{}, err
	}
	return getDoc[domain.SequenceCounter](ctx, t.db.Collection(colCounters), name)
}

func (t *tx) GetInventoryItem(ctx context.Context, sku string) (domain.Item, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Item{}, err
	}
	return getDoc[domain.Item](ctx, t.db.Collection(colInventory), sku)
}

func (t *tx) ListInventory(ctx context.Context) ([]domain.Item, error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	return findDocs[domain.Item](ctx, t.db.Collection(colInventory), bson.M{}, bson.D{{Key: "_id", Value: 1}})
}

func (t *tx) GetSoldItem(ctx context.Context, sku string) (domain.SoldItem, error) {
	if err := t.BeginRead(); err != nil {
		return domain.SoldItem{}, err
	}
	return getDoc[domain.SoldItem](ctx, t.db.Collection(colSold), sku)
}

func (t *tx) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Customer{}, err
	}
	return getDoc[domain.Customer](ctx, t.db.Collection(colCustomers), id)
}

func (t *tx) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Invoice{}, err
	}
	return getDoc[domain.Invoice](ctx, t.db.Collection(colInvoices), id)
}

func (t *tx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := t.BeginRead(); err != nil {
		return domain.Order{}, err
	}
	return getDoc[domain.Order](ctx, t.db.Collection(colOrders), id)
}

var postingOrder = bson.D{{Key: "doc.timestamp", Value: 1}, {Key: "_id", Value: 1}}

func (t *tx) ListPostingsByEntity(ctx context.Context, entityID string) ([]domain.LedgerPosting, error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	return findDocs[domain.LedgerPosting](ctx, t.db.Collection(colPostings), bson.M{"doc.entity_id": entityID}, postingOrder)
}

func (t *tx) ListPostingsByInvoice(ctx context.Context, invoiceID string) ([]domain.LedgerPosting, error) {
	if err := t.BeginRead(); err != nil {
		return nil, err
	}
	return findDocs[domain.LedgerPosting](ctx, t.db.Collection(colPostings), bson.M{"doc.invoice_ref": invoiceID}, postingOrder)
}

func (t *tx) PutSettings(ctx context.Context, settings domain.Settings) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colSettings), settingsID, settings)
}

func (t *tx) PutCounter(ctx context.Context, counter domain.SequenceCounter) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colCounters), counter.Name, counter)
}

func (t *tx) PutInventoryItem(ctx context.Context, item domain.Item) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colInventory), item.SKU, item)
}

func (t *tx) DeleteInventoryItem(ctx context.Context, sku string) error {
	t.BeginWrite()
	n, err := deleteDoc(ctx, t.db.Collection(colInventory), sku)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (t *tx) PutSoldItem(ctx context.Context, sold domain.SoldItem) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colSold), sold.Item.SKU, sold)
}

func (t *tx) DeleteSoldItem(ctx context.Context, sku string) error {
	t.BeginWrite()
	_, err := deleteDoc(ctx, t.db.Collection(colSold), sku)
	return err
}

func (t *tx) PutCustomer(ctx context.Context, customer domain.Customer) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colCustomers), customer.ID, customer)
}

func (t *tx) PutInvoice(ctx context.Context, invoice domain.Invoice) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colInvoices), invoice.ID, invoice)
}

func (t *tx) DeleteInvoice(ctx context.Context, id string) error {
	t.BeginWrite()
	_, err := deleteDoc(ctx, t.db.Collection(colInvoices), id)
	return err
}

func (t *tx) AppendPosting(ctx context.Context, posting domain.LedgerPosting) error {
	t.BeginWrite()
	_, err := t.db.Collection(colPostings).InsertOne(ctx, envelope[domain.LedgerPosting]{ID: posting.ID, Doc: posting})
	return mapError(err)
}

func (t *tx) DeletePosting(ctx context.Context, id string) error {
	t.BeginWrite()
	_, err := deleteDoc(ctx, t.db.Collection(colPostings), id)
	return err
}

func (t *tx) PutOrder(ctx context.Context, order domain.Order) error {
	t.BeginWrite()
	return putDoc(ctx, t.db.Collection(colOrders), order.ID, order)
}
