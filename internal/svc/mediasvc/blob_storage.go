package mediasvc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/blob"
	"github.com/mkrupp/promptbank/internal/util/clock"
	"github.com/mkrupp/promptbank/internal/util/encoding"
)

// ErrUnknownBucket is returned for buckets the storage was not created with.
var ErrUnknownBucket = errors.New("unknown bucket")

// BlobStorage implements Storage on blob repositories.
// Object metadata lives in one repository per bucket. Object content is stored once
// per distinct content hash, with a backref list naming every object that uses it,
// so identical uploads share their data. Resized images are cached per hash and width.
type BlobStorage struct {
	buckets     map[string]blob.Repository
	dataRepo    blob.Repository
	backrefRepo blob.Repository
	cacheRepo   blob.Repository
	clock       clock.Clock
	cfg         Config
	log         logging.Logger
}

var _ Storage = (*BlobStorage)(nil)

// NewBlobStorage creates a BlobStorage serving the given buckets.
// Returns an error if a bucket name is invalid or any repository initialization fails.
func NewBlobStorage(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	cfg Config,
	clk clock.Clock,
	buckets ...string,
) (*BlobStorage, error) {
	storage := &BlobStorage{
		buckets: make(map[string]blob.Repository, len(buckets)),
		clock:   clk,
		cfg:     cfg,
		log:     logging.GetLogger("svc.mediasvc.blob_storage"),
	}

	var err error

	if storage.dataRepo, err = repoFactory(ctx, "data", "bin"); err != nil {
		return nil, fmt.Errorf("new data repository: %w", err)
	}

	if storage.backrefRepo, err = repoFactory(ctx, "data", "txt"); err != nil {
		return nil, fmt.Errorf("new backref repository: %w", err)
	}

	if storage.cacheRepo, err = repoFactory(ctx, "cache", "bin"); err != nil {
		return nil, fmt.Errorf("new cache repository: %w", err)
	}

	for _, bucket := range buckets {
		if err := ValidateName(bucket); err != nil {
			return nil, fmt.Errorf("bucket: %w", err)
		}

		if storage.buckets[bucket], err = repoFactory(ctx, "meta/"+bucket, "json"); err != nil {
			return nil, fmt.Errorf("new meta repository for %s: %w", bucket, err)
		}
	}

	return storage, nil
}

// PublicURL implements Storage.PublicURL.
func (s *BlobStorage) PublicURL(bucket, name string) string {
	return publicURL(s.cfg.PublicBaseURL, bucket, name)
}

// Locate maps a public URL of this storage back to its bucket and object name.
func (s *BlobStorage) Locate(rawURL string) (bucket, name string, ok bool) {
	bucket, name, ok = ParsePublicURL(s.cfg.PublicBaseURL, rawURL)
	if _, known := s.buckets[bucket]; !known {
		return "", "", false
	}

	return bucket, name, ok
}

// Upload implements Storage.Upload.
func (s *BlobStorage) Upload(
	ctx context.Context,
	bucket string,
	name string,
	contentType string,
	data []byte,
) (_ string, err error) {
	log := s.log.With(logging.Group("object",
		"bucket", bucket,
		"name", name,
		"type", contentType,
		"size", len(data),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "object upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "object uploaded")
		}
	}()

	metaRepo, err := s.metaRepo(bucket, name)
	if err != nil {
		return "", err
	}

	if int64(len(data)) > s.cfg.MaxSize {
		return "", fmt.Errorf("%w: %d exceeds %d", domain.ErrObjectTooLarge, len(data), s.cfg.MaxSize)
	}

	meta := domain.ObjectMeta{
		Bucket:      bucket,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        contentHash(data),
		CreatedAt:   s.clock.Now().UTC(),
	}

	metaBlob, err := meta.AsBlob()
	if err != nil {
		return "", fmt.Errorf("convert meta to blob: %w", err)
	}

	unlockMeta, err := metaRepo.Lock(ctx, metaBlob.ID, true)
	if err != nil {
		return "", fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	if metaRepo.Exists(ctx, metaBlob.ID) {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrObjectExists, bucket, name)
	}

	dataID := domain.BlobID(meta.Hash)

	unlockData, err := s.dataRepo.Lock(ctx, dataID, true)
	if err != nil {
		return "", fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	if !s.dataRepo.Exists(ctx, dataID) {
		if err := s.dataRepo.Store(ctx, domain.NewBlob(dataID, data)); err != nil {
			return "", fmt.Errorf("store data: %w", err)
		}
	}

	if err := s.addBackref(ctx, dataID, backref(bucket, name)); err != nil {
		return "", fmt.Errorf("add backref: %w", err)
	}

	if err := metaRepo.Store(ctx, metaBlob); err != nil {
		return "", fmt.Errorf("store meta: %w", err)
	}

	return s.PublicURL(bucket, name), nil
}

// Remove implements Storage.Remove. Content no longer referenced by any object is
// deleted together with its cached resizes.
func (s *BlobStorage) Remove(ctx context.Context, bucket, name string) (err error) {
	var pruned bool

	log := s.log.With(logging.Group("object", "bucket", bucket, "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "object remove failed", "error", err)
		} else {
			log.DebugContext(ctx, "object removed", "pruned", pruned)
		}
	}()

	metaRepo, err := s.metaRepo(bucket, name)
	if err != nil {
		return err
	}

	unlockMeta, err := metaRepo.Lock(ctx, domain.BlobID(name), true)
	if err != nil {
		return fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := s.fetchMeta(ctx, metaRepo, name)
	if err != nil {
		return err
	}

	dataID := domain.BlobID(meta.Hash)

	unlockData, err := s.dataRepo.Lock(ctx, dataID, true)
	if err != nil {
		return fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	if pruned, err = s.pruneData(ctx, dataID, backref(bucket, name)); err != nil {
		return fmt.Errorf("prune data: %w", err)
	}

	if err := metaRepo.Delete(ctx, domain.BlobID(name)); err != nil {
		return fmt.Errorf("delete meta: %w", err)
	}

	return nil
}

// Fetch implements Storage.Fetch. Scaled images are cached; types that cannot be
// resized, and images narrower than width, are returned unchanged.
func (s *BlobStorage) Fetch(ctx context.Context, bucket, name string, width int) (obj domain.Object, err error) {
	log := s.log.With(logging.Group("object", "bucket", bucket, "name", name, "width", width))

	defer func() {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.DebugContext(ctx, "object not found")
		case err != nil:
			log.ErrorContext(ctx, "object fetch failed", "error", err)
		default:
			log.DebugContext(ctx, "object fetched", "size", obj.Meta.Size)
		}
	}()

	metaRepo, err := s.metaRepo(bucket, name)
	if err != nil {
		return domain.Object{}, err
	}

	unlockMeta, err := metaRepo.Lock(ctx, domain.BlobID(name), false)
	if err != nil {
		return domain.Object{}, fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := s.fetchMeta(ctx, metaRepo, name)
	if err != nil {
		return domain.Object{}, err
	}

	unlockData, err := s.dataRepo.Lock(ctx, domain.BlobID(meta.Hash), false)
	if err != nil {
		return domain.Object{}, fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	dataBlob, err := s.dataRepo.Fetch(ctx, domain.BlobID(meta.Hash))
	if err != nil {
		return domain.Object{}, fmt.Errorf("fetch data: %w", err)
	}

	obj = domain.Object{Meta: meta, Data: dataBlob.Bytes()}

	if width <= 0 || !resizable(meta.ContentType) {
		return obj, nil
	}

	return s.resized(ctx, obj, min(width, s.cfg.MaxWidth))
}

func (s *BlobStorage) resized(ctx context.Context, obj domain.Object, width int) (domain.Object, error) {
	cacheID := domain.BlobID(fmt.Sprintf("%s_w%d", obj.Meta.Hash, width))

	unlock, err := s.cacheRepo.Lock(ctx, cacheID, true)
	if err != nil {
		return domain.Object{}, fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	if s.cacheRepo.Exists(ctx, cacheID) {
		cacheBlob, err := s.cacheRepo.Fetch(ctx, cacheID)
		if err != nil {
			return domain.Object{}, fmt.Errorf("fetch cache: %w", err)
		}

		return withData(obj, cacheBlob.Bytes(), resizedType(obj.Meta.ContentType)), nil
	}

	data, contentType, err := resizeImage(obj.Data, obj.Meta.ContentType, width, s.cfg.Interpolator)
	if err != nil {
		s.log.WarnContext(ctx, "image resize failed, serving original",
			logging.Group("object", "bucket", obj.Meta.Bucket, "name", obj.Meta.Name),
			"error", err,
		)

		return obj, nil
	}

	if data == nil {
		return obj, nil
	}

	if err := s.cacheRepo.Store(ctx, domain.NewBlob(cacheID, data)); err != nil {
		return domain.Object{}, fmt.Errorf("store cache: %w", err)
	}

	return withData(obj, data, contentType), nil
}

func (s *BlobStorage) metaRepo(bucket, name string) (blob.Repository, error) {
	repo, ok := s.buckets[bucket]
	if !ok {
		return nil, errors.Join(domain.ErrNotFound, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket))
	}

	if err := ValidateName(name); err != nil {
		return nil, err
	}

	return repo, nil
}

func (s *BlobStorage) fetchMeta(ctx context.Context, metaRepo blob.Repository, name string) (domain.ObjectMeta, error) {
	metaBlob, err := metaRepo.Fetch(ctx, domain.BlobID(name))
	if err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("fetch meta: %w", err)
	}

	meta, err := domain.NewObjectMetaFromBlob(metaBlob)
	if err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("convert meta blob: %w", err)
	}

	return meta, nil
}

func (s *BlobStorage) fetchBackrefs(ctx context.Context, dataID domain.BlobID) ([]string, error) {
	if !s.backrefRepo.Exists(ctx, dataID) {
		return nil, nil
	}

	backrefBlob, err := s.backrefRepo.Fetch(ctx, dataID)
	if err != nil {
		return nil, fmt.Errorf("fetch backrefs: %w", err)
	}

	var refs []string

	for _, line := range bytes.Split(backrefBlob.Bytes(), []byte("\n")) {
		if len(line) > 0 {
			refs = append(refs, string(line))
		}
	}

	return refs, nil
}

func (s *BlobStorage) storeBackrefs(ctx context.Context, dataID domain.BlobID, refs []string) error {
	var buf bytes.Buffer

	for _, ref := range refs {
		buf.WriteString(ref)
		buf.WriteByte('\n')
	}

	if err := s.backrefRepo.Store(ctx, domain.NewBlob(dataID, buf.Bytes())); err != nil {
		return fmt.Errorf("store backrefs: %w", err)
	}

	return nil
}

func (s *BlobStorage) addBackref(ctx context.Context, dataID domain.BlobID, ref string) error {
	refs, err := s.fetchBackrefs(ctx, dataID)
	if err != nil {
		return err
	}

	if slices.Contains(refs, ref) {
		return nil
	}

	return s.storeBackrefs(ctx, dataID, append(refs, ref))
}

// pruneData drops ref from the backrefs of dataID and deletes the data once unreferenced.
func (s *BlobStorage) pruneData(ctx context.Context, dataID domain.BlobID, ref string) (bool, error) {
	refs, err := s.fetchBackrefs(ctx, dataID)
	if err != nil {
		return false, err
	}

	refs = slices.DeleteFunc(refs, func(r string) bool { return r == ref })

	if len(refs) > 0 {
		return false, s.storeBackrefs(ctx, dataID, refs)
	}

	if err := s.dataRepo.Delete(ctx, dataID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("delete data: %w", err)
	}

	if err := s.backrefRepo.Delete(ctx, dataID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("delete backrefs: %w", err)
	}

	if err := s.cacheRepo.DeleteAll(ctx, dataID, "_w*"); err != nil {
		return false, fmt.Errorf("delete cache: %w", err)
	}

	return true, nil
}

func backref(bucket, name string) string {
	return bucket + "/" + name
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)

	return encoding.EncodeCrockfordB32LC(sum[:])
}

func withData(obj domain.Object, data []byte, contentType string) domain.Object {
	obj.Data = data
	obj.Meta.ContentType = contentType
	obj.Meta.Size = int64(len(data))

	return obj
}
