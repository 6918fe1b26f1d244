package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the production Store.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Client() *firestore.Client {
	return f.client
}

func (f *Firestore) Get(ctx context.Context, path string) (*Snapshot, error) {
	ref, err := f.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	return fromFirestore(path, ref.ID, snap, mapError(err))
}

func (f *Firestore) Set(ctx context.Context, path string, data map[string]interface{}) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, toFirestore(stripDeletes(data)))
	return mapError(err)
}

func (f *Firestore) Merge(ctx context.Context, path string, data map[string]interface{}) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, toFirestore(data), firestore.MergeAll)
	return mapError(err)
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return mapError(err)
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	fq, err := f.query(q)
	if err != nil {
		return nil, err
	}
	iter := fq.Documents(ctx)
	defer iter.Stop()
	var out []*Snapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err)
		}
		snap, _ := fromFirestore(doc.Ref.Path, doc.Ref.ID, doc, nil)
		out = append(out, snap)
	}
	return out, nil
}

// WatchDoc listens on a goroutine until ctx is done. The SDK retries
// transient failures itself; terminal errors are passed to fn once.
func (f *Firestore) WatchDoc(ctx context.Context, path string, fn DocFunc) {
	ref, err := f.doc(path)
	if err != nil {
		fn(nil, err)
		return
	}
	go func() {
		it := ref.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled || err == iterator.Done {
					return
				}
				fn(nil, mapError(err))
				return
			}
			s, _ := fromFirestore(path, ref.ID, snap, nil)
			fn(s, nil)
		}
	}()
}

func (f *Firestore) WatchQuery(ctx context.Context, q Query, fn QueryFunc) {
	fq, err := f.query(q)
	if err != nil {
		fn(nil, err)
		return
	}
	go func() {
		it := fq.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled || err == iterator.Done {
					return
				}
				fn(nil, mapError(err))
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				log.Printf("docstore: query snapshot %s: %v", q.Collection, err)
				continue
			}
			out := make([]*Snapshot, 0, len(docs))
			for _, d := range docs {
				s, _ := fromFirestore(d.Ref.Path, d.Ref.ID, d, nil)
				out = append(out, s)
			}
			fn(out, nil)
		}
	}()
}

func (f *Firestore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{f: f, tx: t})
	})
	return mapError(err)
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}
	ref := f.client.Doc(path)
	if ref == nil {
		return nil, ErrInvalidPath
	}
	return ref, nil
}

func (f *Firestore) query(q Query) (firestore.Query, error) {
	if !validCollection(q.Collection) {
		return firestore.Query{}, ErrInvalidPath
	}
	col := f.client.Collection(q.Collection)
	if col == nil {
		return firestore.Query{}, ErrInvalidPath
	}
	fq := col.Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, "==", flt.Value)
	}
	return fq, nil
}

type firestoreTx struct {
	f  *Firestore
	tx *firestore.Transaction
}

func (t *firestoreTx) Get(path string) (*Snapshot, error) {
	ref, err := t.f.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := t.tx.Get(ref)
	return fromFirestore(path, ref.ID, snap, mapError(err))
}

func (t *firestoreTx) Create(path string, data map[string]interface{}) error {
	ref, err := t.f.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Create(ref, toFirestore(stripDeletes(data)))
}

func (t *firestoreTx) Set(path string, data map[string]interface{}) error {
	ref, err := t.f.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestore(stripDeletes(data)))
}

func (t *firestoreTx) Merge(path string, data map[string]interface{}) error {
	ref, err := t.f.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestore(data), firestore.MergeAll)
}

func (t *firestoreTx) Delete(path string) error {
	ref, err := t.f.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

// fromFirestore converts a snapshot, silencing NotFound into Exists=false.
func fromFirestore(path, id string, snap *firestore.DocumentSnapshot, err error) (*Snapshot, error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if snap == nil || !snap.Exists() {
		return &Snapshot{Path: path, ID: id}, ErrNotFound
	}
	return &Snapshot{
		Path:   path,
		ID:     id,
		Exists: true,
		Data:   snap.Data(),
		decode: snap.DataTo,
	}, nil
}

// toFirestore swaps DeleteField for the SDK sentinel.
func toFirestore(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case deleteSentinel:
			out[k] = firestore.Delete
		case map[string]interface{}:
			out[k] = toFirestore(t)
		default:
			out[k] = v
		}
	}
	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}
