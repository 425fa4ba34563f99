package remoteside

import (
	"context"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cozysync/engine/internal/syncengine"
)

// defaultPollInterval is how often Poller re-lists the bucket's object
// versions (SPEC_FULL.md §2 item 9: "a poller that lists bucket versions
// into the store").
const defaultPollInterval = 10 * time.Second

// Poller is the remote-side ChangeSource: it periodically lists the
// bucket's object versions and upserts an observed Metadata into the
// store for anything new, mirroring localside.Watcher's upsert idiom but
// driven by polling rather than a filesystem notification API, since S3
// has no push-based change feed.
type Poller struct {
	client *s3.Client
	bucket string
	prefix string
	store  syncengine.Store
	idCase syncengine.IDCase

	interval time.Duration
	done     chan struct{}
}

// NewPoller constructs a Poller over the same bucket/prefix a RemoteSide
// writes to.
func NewPoller(client *s3.Client, bucket, prefix string, store syncengine.Store, idCase syncengine.IDCase) *Poller {
	return &Poller{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		store:    store,
		idCase:   idCase,
		interval: defaultPollInterval,
		done:     make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	slog.Info("remoteside: poller start", "bucket", p.bucket, "prefix", p.prefix)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.poll(ctx); err != nil {
		slog.Warn("remoteside: poll failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.done:
			return nil
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				slog.Warn("remoteside: poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) Stop() error {
	close(p.done)
	slog.Info("remoteside: poller stop")
	return nil
}

// poll lists every key's current version (and current delete marker, if
// any) and upserts a Metadata record for whatever differs from the
// store's view, bumping Sides.Remote the same way Watcher bumps
// Sides.Local for a local observation.
func (p *Poller) poll(ctx context.Context) error {
	paginator := s3.NewListObjectVersionsPaginator(p.client, &s3.ListObjectVersionsInput{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapAWSErr(err)
		}

		for _, v := range page.Versions {
			if !aws.ToBool(v.IsLatest) {
				continue
			}
			if err := p.upsertVersion(ctx, v); err != nil {
				slog.Warn("remoteside: poller failed to record version", "key", aws.ToString(v.Key), "error", err)
			}
		}
		for _, d := range page.DeleteMarkers {
			if !aws.ToBool(d.IsLatest) {
				continue
			}
			if err := p.upsertDeleteMarker(d); err != nil {
				slog.Warn("remoteside: poller failed to record delete marker", "key", aws.ToString(d.Key), "error", err)
			}
		}
	}
	return nil
}

func (p *Poller) pathFor(key string) (string, bool) {
	if p.prefix != "" {
		withSlash := p.prefix + "/"
		if !strings.HasPrefix(key, withSlash) {
			return "", false
		}
		key = strings.TrimPrefix(key, withSlash)
	}
	if key == "" {
		return "", false
	}
	return key, true
}

func (p *Poller) upsertVersion(ctx context.Context, v types.ObjectVersion) error {
	key := aws.ToString(v.Key)
	rel, ok := p.pathFor(key)
	if !ok {
		return nil
	}

	isFolder := strings.HasSuffix(rel, "/")
	rel = strings.TrimSuffix(rel, "/")
	id := syncengine.IdentifierFor(p.idCase, rel)

	existing, err := p.store.Get(id)
	if err != nil && err != syncengine.ErrNotFound {
		return err
	}

	trashed, err := p.isTrashed(ctx, key)
	if err != nil {
		return err
	}

	etag := strings.Trim(aws.ToString(v.ETag), `"`)
	if !isFolder && existing != nil && existing.MD5Sum == etag && !existing.Deleted && existing.Trashed == trashed {
		return nil
	}

	doc := baseRemoteDoc(id, rel, existing)
	doc.Deleted = false
	doc.Trashed = trashed
	if isFolder {
		doc.DocType = syncengine.DocTypeFolder
	} else {
		doc.DocType = syncengine.DocTypeFile
		doc.MD5Sum = etag
		doc.Size = aws.ToInt64(v.Size)
		doc.Mime = mime.TypeByExtension(path.Ext(rel))
	}
	if v.LastModified != nil {
		doc.UpdatedAt = *v.LastModified
	}
	doc.Sides.Remote = syncengine.ExtractRev(doc.Rev) + 1

	_, err = p.store.Put(doc)
	return err
}

// isTrashed reads the object's tag set and reports whether it carries the
// tag-based soft-trash marker RemoteSide.trash writes (side.go's
// trashedTagKey/trashedTagValue), since S3 gives no other signal that a
// still-present object has been trashed rather than merely updated.
func (p *Poller) isTrashed(ctx context.Context, key string) (bool, error) {
	out, err := p.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, wrapAWSErr(err)
	}
	for _, tag := range out.TagSet {
		if aws.ToString(tag.Key) == trashedTagKey && aws.ToString(tag.Value) == trashedTagValue {
			return true, nil
		}
	}
	return false, nil
}

func (p *Poller) upsertDeleteMarker(d types.DeleteMarkerEntry) error {
	key := aws.ToString(d.Key)
	rel, ok := p.pathFor(key)
	if !ok {
		return nil
	}
	rel = strings.TrimSuffix(rel, "/")
	id := syncengine.IdentifierFor(p.idCase, rel)

	existing, err := p.store.Get(id)
	if err != nil {
		if err == syncengine.ErrNotFound {
			return nil
		}
		return err
	}
	if existing.Deleted {
		return nil
	}

	doc := existing.Clone()
	doc.Deleted = true
	doc.Sides.Remote = syncengine.ExtractRev(doc.Rev) + 1
	_, err = p.store.Put(doc)
	return err
}

func baseRemoteDoc(id, rel string, existing *syncengine.Metadata) *syncengine.Metadata {
	if existing != nil {
		return existing.Clone()
	}
	return &syncengine.Metadata{ID: id, Path: rel}
}
