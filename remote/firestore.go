package remote

import (
	"context"
	"encoding/json"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scalarField holds non-object values, since a Firestore document is always a map.
const scalarField = "_value"

var (
	errNotDocument   = errors.New("path does not address a document")
	errNotCollection = errors.New("path does not address a collection")
)

// Firestore is a Client on Cloud Firestore. Store paths map onto Firestore paths
// directly: an odd number of keys is a collection, an even number a document.
// Reading a path returns one level: a document's fields, or a collection's documents
// without their subcollections.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps a Firestore client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func isDocumentPath(path string) bool {
	n := len(splitPath(path))
	return n > 0 && n%2 == 0
}

func (f *Firestore) Get(ctx context.Context, path string) (Snapshot, error) {
	if isDocumentPath(path) {
		snap, err := f.client.Doc(path).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return NewSnapshot(path, nil), nil
		}
		if err != nil {
			return Snapshot{}, unavailable("get", path, err)
		}
		raw, err := documentJSON(snap)
		if err != nil {
			return Snapshot{}, unavailable("get", path, err)
		}
		return NewSnapshot(path, raw), nil
	}
	coll := f.client.Collection(path)
	if coll == nil {
		return Snapshot{}, unavailable("get", path, errNotCollection)
	}
	docs, err := coll.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	raw, err := collectionJSON(docs)
	if err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	return NewSnapshot(path, raw), nil
}

func (f *Firestore) Set(ctx context.Context, path string, value any) error {
	if !isDocumentPath(path) {
		return unavailable("set", path, errNotDocument)
	}
	fields, err := documentFields(value)
	if err != nil {
		return unavailable("set", path, err)
	}
	if fields == nil {
		return f.Remove(ctx, path)
	}
	_, err = f.client.Doc(path).Set(ctx, fields)
	return unavailable("set", path, err)
}

func (f *Firestore) Update(ctx context.Context, path string, fields map[string]any) error {
	if !isDocumentPath(path) {
		return unavailable("update", path, errNotDocument)
	}
	if len(fields) == 0 {
		return nil
	}
	data, err := documentFields(fields)
	if err != nil {
		return unavailable("update", path, err)
	}
	_, err = f.client.Doc(path).Set(ctx, data, firestore.MergeAll)
	return unavailable("update", path, err)
}

func (f *Firestore) Push(ctx context.Context, path string, value any) (string, error) {
	if isDocumentPath(path) {
		return "", unavailable("push", path, errNotCollection)
	}
	// document ids are generated here rather than by Firestore, whose random ids do not
	// sort in creation order
	key := NewKey()
	if err := f.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (f *Firestore) Remove(ctx context.Context, path string) error {
	if isDocumentPath(path) {
		return unavailable("remove", path, f.deleteDocument(ctx, f.client.Doc(path)))
	}
	coll := f.client.Collection(path)
	if coll == nil {
		return unavailable("remove", path, errNotCollection)
	}
	return unavailable("remove", path, f.deleteCollection(ctx, coll))
}

// deleteDocument removes a document and its subcollections; Firestore does not cascade.
func (f *Firestore) deleteDocument(ctx context.Context, doc *firestore.DocumentRef) error {
	colls, err := doc.Collections(ctx).GetAll()
	if err != nil {
		return err
	}
	for _, coll := range colls {
		if err := f.deleteCollection(ctx, coll); err != nil {
			return err
		}
	}
	_, err = doc.Delete(ctx)
	return err
}

func (f *Firestore) deleteCollection(ctx context.Context, coll *firestore.CollectionRef) error {
	refs := coll.DocumentRefs(ctx)
	for {
		doc, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := f.deleteDocument(ctx, doc); err != nil {
			return err
		}
	}
}

// Subscribe uses Firestore snapshot listeners. The listener retries transient failures
// itself; an error it gives up on is reported once and ends the feed.
func (f *Firestore) Subscribe(ctx context.Context, path string, onValue func(Snapshot), onError func(error)) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &listenSub{pollSub: pollSub{cancel: cancel}}

	var next func() (json.RawMessage, error)
	if isDocumentPath(path) {
		it := f.client.Doc(path).Snapshots(ctx)
		sub.stop = it.Stop
		next = func() (json.RawMessage, error) {
			snap, err := it.Next()
			if err != nil {
				return nil, err
			}
			return documentJSON(snap)
		}
	} else {
		coll := f.client.Collection(path)
		if coll == nil {
			cancel()
			return nil, unavailable("subscribe", path, errNotCollection)
		}
		it := coll.OrderBy(firestore.DocumentID, firestore.Asc).Snapshots(ctx)
		sub.stop = it.Stop
		next = func() (json.RawMessage, error) {
			qs, err := it.Next()
			if err != nil {
				return nil, err
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				return nil, err
			}
			return collectionJSON(docs)
		}
	}

	go func() {
		for {
			raw, err := next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				sub.emit(func() {
					if onError != nil {
						onError(unavailable("subscribe", path, err))
					}
				})
				return
			}
			sub.emit(func() { onValue(NewSnapshot(path, raw)) })
		}
	}()
	return sub, nil
}

// listenSub is a pollSub that also stops a Firestore snapshot iterator.
type listenSub struct {
	pollSub
	stop func()
}

func (s *listenSub) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}

func documentJSON(snap *firestore.DocumentSnapshot) (json.RawMessage, error) {
	if snap == nil || !snap.Exists() {
		return nil, nil
	}
	return json.Marshal(unwrapDocument(snap.Data()))
}

func collectionJSON(docs []*firestore.DocumentSnapshot) (json.RawMessage, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(docs))
	for _, d := range docs {
		out[d.Ref.ID] = unwrapDocument(d.Data())
	}
	return json.Marshal(out)
}

func unwrapDocument(data map[string]any) any {
	if v, ok := data[scalarField]; ok && len(data) == 1 {
		return v
	}
	return data
}

func documentFields(value any) (map[string]any, error) {
	v, err := normalize(value)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		return map[string]any{scalarField: v}, nil
	}
}
