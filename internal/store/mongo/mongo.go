// Package mongo is a store.Store backed by MongoDB multi-document
// transactions. It requires a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"karatpos/internal/store"
)

// Collection names.
const (
	colSettings  = "settings"
	colCounters  = "sequence_counters"
	colInventory = "inventory_items"
	colSold      = "sold_items"
	colCustomers = "customers"
	colInvoices  = "invoices"
	colPostings  = "ledger_postings"
	colOrders    = "orders"
)

var collections = []string{colSettings, colCounters, colInventory, colSold, colCustomers, colInvoices, colPostings, colOrders}

const settingsID = "rates"

type Store struct {
	client *mongodriver.Client
	db     *mongodriver.Database
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, uri string, database string) (*Store, error) {
	client, err := mongodriver.Connect(options.Client().
		ApplyURI(uri).
		SetRegistry(newRegistry()).
		SetBSONOptions(&options.BSONOptions{UseJSONStructTags: true}))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate creates collections up front (transactions cannot create them on
// older servers) and the posting lookup indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, name := range collections {
		if err := s.db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	_, err := s.db.Collection(colPostings).Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "doc.entity_id", Value: 1}, {Key: "doc.timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "doc.invoice_ref", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create posting indexes: %w", err)
	}
	return nil
}

// RunInTx runs fn in a session transaction. Conflicts are raised by the server
// for documents the transaction writes; documents that are only read are not
// re-checked at commit.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return mapError(err)
	}
	defer sess.EndSession(context.Background())

	var bodyErr error
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		bodyErr = fn(ctx, &tx{db: s.db})
		return nil, bodyErr
	})
	if err == nil {
		return nil
	}
	// tx methods map their own driver errors, so the body's error is returned as is.
	if bodyErr != nil && errors.Is(err, bodyErr) {
		return bodyErr
	}
	return mapError(err)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return store.ErrNotFound
	case mongodriver.IsDuplicateKeyError(err), isTransient(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrPersistence, err)
}

// writeConflict is the server code for concurrent writes to one document.
const writeConflict = 112

func isTransient(err error) bool {
	var se mongodriver.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("UnknownTransactionCommitResult") ||
			se.HasErrorCode(writeConflict)
	}
	return false
}

func isNamespaceExists(err error) bool {
	var ce mongodriver.CommandError
	return errors.As(err, &ce) && ce.Code == 48
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// newRegistry stores decimal.Decimal as its exact string form.
func newRegistry() *bson.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(decimalType, bson.ValueEncoderFunc(
		func(_ bson.EncodeContext, vw bson.ValueWriter, val reflect.Value) error {
			d, ok := val.Interface().(decimal.Decimal)
			if !ok {
				return fmt.Errorf("decimal encoder: unexpected %s", val.Type())
			}
			return vw.WriteString(d.String())
		}))
	reg.RegisterTypeDecoder(decimalType, bson.ValueDecoderFunc(
		func(_ bson.DecodeContext, vr bson.ValueReader, val reflect.Value) error {
			switch vr.Type() {
			case bson.TypeNull:
				if err := vr.ReadNull(); err != nil {
					return err
				}
				val.Set(reflect.ValueOf(decimal.Zero))
				return nil
			case bson.TypeString:
				raw, err := vr.ReadString()
				if err != nil {
					return err
				}
				d, err := decimal.NewFromString(raw)
				if err != nil {
					return err
				}
				val.Set(reflect.ValueOf(d))
				return nil
			}
			return fmt.Errorf("decimal decoder: cannot decode bson %s", vr.Type())
		}))
	return reg
}
