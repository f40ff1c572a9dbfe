// Package molecule provides the application-level service for molecule operations.
// This package serves as the interface between HTTP handlers, the CLI, the
// ingest worker and the domain logic.
package molecule

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainMol "github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// Service defines the interface for molecule application operations.
type Service interface {
	ParseUpload(ctx context.Context, input *ParseUploadInput) (*mtypes.MoleculeDTO, error)
	CreateFromSMILES(ctx context.Context, input *CreateFromSMILESInput) (*mtypes.MoleculeDTO, error)
	GetByID(ctx context.Context, id string) (*mtypes.MoleculeDTO, error)
	List(ctx context.Context, page, pageSize int) (*mtypes.MoleculeListResponse, error)
	Delete(ctx context.Context, id string) error
	UpdateGeometry(ctx context.Context, id string, minimize bool) (*mtypes.MoleculeDTO, error)
	BondDistances(ctx context.Context, id string) (*mtypes.DistancesResponse, error)
	AtomDistance(ctx context.Context, id string, atom1, atom2 int) (*mtypes.BondDistanceDTO, error)
	IngestObject(ctx context.Context, input *IngestObjectInput) (*mtypes.MoleculeDTO, error)
	Search(ctx context.Context, req *mtypes.SearchRequest) (*mtypes.SearchResponse, error)
}

// ParseUploadInput contains an uploaded structure file.
type ParseUploadInput struct {
	Filename string
	Data     []byte
	// Format overrides the extension-derived format when set.
	Format string
}

// CreateFromSMILESInput contains input for building a molecule from SMILES.
type CreateFromSMILESInput struct {
	SMILES   string
	Name     string
	Minimize bool
}

// IngestObjectInput points at a structure file already in object storage.
type IngestObjectInput struct {
	Bucket    string
	ObjectKey string
	Filename  string
	Format    string
}

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// StructureParser turns raw bytes into a canonical structure.
// *parser.Coordinator satisfies it.
type StructureParser interface {
	ParseDetailed(raw []byte, format, filename string) (*parser.Result, error)
}

// Cache stores parse results keyed by content hash.  Any Get error is
// treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ObjectStore archives raw uploads and serves objects to the ingest path.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// EventPublisher delivers molecule lifecycle events.
type EventPublisher interface {
	PublishMoleculeEvent(ctx context.Context, event *mtypes.MoleculeEvent) error
}

// Locker serialises read-modify-write cycles on one stored molecule across
// replicas.  The returned function releases the lock.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// SearchIndex mirrors stored molecules into a search backend.
type SearchIndex interface {
	Index(ctx context.Context, mol *mtypes.MoleculeDTO) error
	Remove(ctx context.Context, id common.ID) error
	Search(ctx context.Context, req *mtypes.SearchRequest) (*mtypes.SearchResponse, error)
}

// Metrics records service-level counters.
type Metrics interface {
	ObserveUpload(format string, size int)
	ObserveCache(hit bool)
	ObserveStored(source string)
}

// cachedParse is the value stored under a parse cache key.
type cachedParse struct {
	Structure mtypes.StructureDTO `json:"structure"`
	Format    string              `json:"format"`
	Engine    string              `json:"engine"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultMaxAtoms       = 100000
	DefaultCacheTTL       = time.Hour

	cacheKeyPrefix = "parse:"
	archivePrefix  = "uploads/"
)

// Option configures the service.
type Option func(*serviceImpl)

// WithCache enables the parse-result cache.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithObjectStore enables upload archiving and object ingestion.
func WithObjectStore(o ObjectStore) Option {
	return func(s *serviceImpl) { s.objects = o }
}

// WithPublisher enables lifecycle event publishing.
func WithPublisher(p EventPublisher) Option {
	return func(s *serviceImpl) { s.publisher = p }
}

// WithLocker guards geometry updates and deletes with a per-molecule lock.
func WithLocker(l Locker) Option {
	return func(s *serviceImpl) { s.locker = l }
}

// WithSearchIndex keeps idx in step with the store and enables Search.
func WithSearchIndex(idx SearchIndex) Option {
	return func(s *serviceImpl) { s.search = idx }
}

// WithMetrics attaches service metrics.
func WithMetrics(m Metrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithLimits bounds upload size and parsed atom count.  Non-positive values
// keep the defaults.
func WithLimits(maxUploadBytes int64, maxAtoms int) Option {
	return func(s *serviceImpl) {
		if maxUploadBytes > 0 {
			s.maxUploadBytes = maxUploadBytes
		}
		if maxAtoms > 0 {
			s.maxAtoms = maxAtoms
		}
	}
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	repo      domainMol.Repository
	parser    StructureParser
	logger    logging.Logger
	cache     Cache
	objects   ObjectStore
	publisher EventPublisher
	metrics   Metrics
	locker    Locker
	search    SearchIndex

	cacheTTL       time.Duration
	maxUploadBytes int64
	maxAtoms       int

	inflight singleflight.Group
}

// NewService creates a new molecule application service.
func NewService(repo domainMol.Repository, p StructureParser, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		repo:           repo,
		parser:         p,
		logger:         logger,
		cacheTTL:       DefaultCacheTTL,
		maxUploadBytes: DefaultMaxUploadBytes,
		maxAtoms:       DefaultMaxAtoms,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Parsing
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) ParseUpload(ctx context.Context, input *ParseUploadInput) (*mtypes.MoleculeDTO, error) {
	return s.parseUpload(ctx, input, true)
}

func (s *serviceImpl) parseUpload(ctx context.Context, input *ParseUploadInput, archive bool) (*mtypes.MoleculeDTO, error) {
	if input == nil || strings.TrimSpace(input.Filename) == "" {
		return nil, errors.InvalidParam("filename is required")
	}
	if len(input.Data) == 0 {
		return nil, errors.InvalidParam("uploaded file is empty").WithDetail(input.Filename)
	}
	if int64(len(input.Data)) > s.maxUploadBytes {
		return nil, errors.New(errors.ErrCodePayloadTooLarge, "uploaded file is too large").
			WithDetail(fmt.Sprintf("%d bytes exceeds the %d byte limit", len(input.Data), s.maxUploadBytes))
	}

	format, err := resolveFormat(input.Format, input.Filename)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveUpload(format.String(), len(input.Data))
	}

	parsed, err := s.parseCached(ctx, input.Data, format, input.Filename)
	if err != nil {
		s.logger.Info("structure parse failed",
			logging.String(logging.FieldFormat, format.String()),
			logging.String("filename", input.Filename),
			logging.String(logging.FieldErrorCode, errors.GetCode(err).String()),
			logging.Err(err))
		return nil, err
	}

	if parsed.Structure.AtomCount > s.maxAtoms {
		return nil, errors.New(errors.ErrCodeMoleculeTooLarge, "molecule has too many atoms").
			WithDetail(fmt.Sprintf("%d atoms exceeds the %d atom limit", parsed.Structure.AtomCount, s.maxAtoms))
	}

	mol, err := domainMol.NewParsedMolecule(domainMol.StructureFromDTO(parsed.Structure), parsed.Format, input.Filename, parsed.Engine)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, mol); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save molecule")
	}
	if s.metrics != nil {
		s.metrics.ObserveStored(string(mol.Source))
	}

	if archive {
		s.archive(ctx, mol, input.Data)
	}
	s.index(ctx, mol)
	s.publish(ctx, mol)

	s.logger.Info("molecule parsed",
		logging.String(logging.FieldMoleculeID, mol.ID.String()),
		logging.String(logging.FieldFormat, mol.Format),
		logging.String(logging.FieldEngine, mol.Engine),
		logging.Int("atoms", mol.Structure.AtomCount))

	dto := mol.ToDTO()
	return &dto, nil
}

func resolveFormat(override, filename string) (parser.Format, error) {
	if strings.TrimSpace(override) != "" {
		return parser.ParseFormat(override)
	}
	return parser.FormatFromFilename(filename)
}

// parseKey identifies a parse by its inputs.  The filename takes part because
// it becomes the structure name when the file carries none.  Format and
// filename are length-prefixed so no split of the same bytes collides.
func parseKey(format parser.Format, filename string, data []byte) string {
	h := sha256.New()
	var n [8]byte
	for _, field := range []string{format.String(), filename} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	h.Write(data)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// parseCached consults the cache, then collapses concurrent parses of the same
// content into one coordinator call.
func (s *serviceImpl) parseCached(ctx context.Context, data []byte, format parser.Format, filename string) (*cachedParse, error) {
	key := parseKey(format, filename, data)

	if s.cache != nil {
		var hit cachedParse
		if err := s.cache.Get(ctx, key, &hit); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCache(true)
			}
			return &hit, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveCache(false)
		}
	}

	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		res, err := s.parser.ParseDetailed(data, format.String(), filename)
		if err != nil {
			return nil, err
		}
		return &cachedParse{
			Structure: res.Structure.ToDTO(),
			Format:    res.Format.String(),
			Engine:    res.Engine,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	parsed := v.(*cachedParse)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, parsed, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache parse result", logging.Err(err))
		}
	}
	return parsed, nil
}

func (s *serviceImpl) IngestObject(ctx context.Context, input *IngestObjectInput) (*mtypes.MoleculeDTO, error) {
	if input == nil || input.Bucket == "" || input.ObjectKey == "" {
		return nil, errors.InvalidParam("bucket and object key are required")
	}
	if s.objects == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "object storage is not configured")
	}
	data, err := s.objects.GetObject(ctx, input.Bucket, input.ObjectKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch object").
			WithDetail(input.Bucket + "/" + input.ObjectKey)
	}
	filename := input.Filename
	if filename == "" {
		filename = path.Base(input.ObjectKey)
	}
	return s.parseUpload(ctx, &ParseUploadInput{Filename: filename, Data: data, Format: input.Format}, false)
}

// ─────────────────────────────────────────────────────────────────────────────
// SMILES
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) CreateFromSMILES(ctx context.Context, input *CreateFromSMILESInput) (*mtypes.MoleculeDTO, error) {
	if input == nil || strings.TrimSpace(input.SMILES) == "" {
		return nil, errors.InvalidParam("smiles is required")
	}
	mol, err := domainMol.NewSMILESMolecule(input.SMILES, input.Name, input.Minimize)
	if err != nil {
		return nil, err
	}
	if mol.Structure.AtomCount > s.maxAtoms {
		return nil, errors.New(errors.ErrCodeMoleculeTooLarge, "molecule has too many atoms")
	}
	if err := s.repo.Save(ctx, mol); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save molecule")
	}
	if s.metrics != nil {
		s.metrics.ObserveStored(string(mol.Source))
	}
	s.index(ctx, mol)
	s.publish(ctx, mol)

	dto := mol.ToDTO()
	return &dto, nil
}

func (s *serviceImpl) UpdateGeometry(ctx context.Context, id string, minimize bool) (*mtypes.MoleculeDTO, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	mol, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mol.RegenerateGeometry(minimize); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, mol); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save molecule")
	}
	s.index(ctx, mol)
	s.publish(ctx, mol)

	dto := mol.ToDTO()
	return &dto, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) GetByID(ctx context.Context, id string) (*mtypes.MoleculeDTO, error) {
	mol, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mol.ToDTO()
	return &dto, nil
}

func (s *serviceImpl) List(ctx context.Context, page, pageSize int) (*mtypes.MoleculeListResponse, error) {
	p := common.Pagination{Page: page, PageSize: pageSize}.Normalize()
	mols, total, err := s.repo.List(ctx, p.Offset(), p.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list molecules")
	}
	items := make([]mtypes.MoleculeDTO, 0, len(mols))
	for _, m := range mols {
		items = append(items, m.ToDTO())
	}
	resp := common.NewPageResponse(items, total, p)
	return &resp, nil
}

func (s *serviceImpl) Delete(ctx context.Context, id string) error {
	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	mol, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, mol.ID); err != nil {
		return err
	}
	mol.MarkDeleted()
	s.unindex(ctx, mol.ID)
	s.publish(ctx, mol)
	return nil
}

// Search queries the search index.  Element symbols are normalized and the
// format is resolved to its canonical name before the query runs.
func (s *serviceImpl) Search(ctx context.Context, req *mtypes.SearchRequest) (*mtypes.SearchResponse, error) {
	if s.search == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "molecule search is not enabled")
	}
	q, err := normalizeSearch(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.search.Search(ctx, q)
	if err != nil {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "molecule search failed")
	}
	return resp, nil
}

func normalizeSearch(req *mtypes.SearchRequest) (*mtypes.SearchRequest, error) {
	q := mtypes.SearchRequest{}
	if req != nil {
		q = *req
	}
	q.Query = strings.TrimSpace(q.Query)
	q.Formula = strings.TrimSpace(q.Formula)

	if q.MinAtoms < 0 || q.MaxAtoms < 0 {
		return nil, errors.InvalidParam("atom bounds must not be negative")
	}
	if q.MaxAtoms > 0 && q.MinAtoms > q.MaxAtoms {
		return nil, errors.InvalidParam("min_atoms exceeds max_atoms").
			WithDetail(fmt.Sprintf("%d > %d", q.MinAtoms, q.MaxAtoms))
	}
	if q.Source != "" && !q.Source.IsValid() {
		return nil, errors.InvalidParam("unknown molecule source").WithDetail(string(q.Source))
	}
	if strings.TrimSpace(q.Format) != "" {
		f, err := parser.ParseFormat(q.Format)
		if err != nil {
			return nil, err
		}
		q.Format = f.String()
	}

	if len(q.Elements) > 0 {
		seen := make(map[string]struct{}, len(q.Elements))
		elements := make([]string, 0, len(q.Elements))
		for _, raw := range q.Elements {
			el, ok := domainMol.LookupElement(raw)
			if !ok {
				return nil, errors.UnsupportedElement(raw)
			}
			if _, dup := seen[el.Symbol]; dup {
				continue
			}
			seen[el.Symbol] = struct{}{}
			elements = append(elements, el.Symbol)
		}
		q.Elements = elements
	}
	return &q, nil
}

func (s *serviceImpl) BondDistances(ctx context.Context, id string) (*mtypes.DistancesResponse, error) {
	mol, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	bonds := domainMol.BondDistances(mol.Structure)
	resp := &mtypes.DistancesResponse{MoleculeID: mol.ID, Bonds: make([]mtypes.BondDistanceDTO, 0, len(bonds))}
	for _, b := range bonds {
		resp.Bonds = append(resp.Bonds, mtypes.BondDistanceDTO{Atom1: b.Atom1, Atom2: b.Atom2, Distance: b.Distance})
	}
	return resp, nil
}

func (s *serviceImpl) AtomDistance(ctx context.Context, id string, atom1, atom2 int) (*mtypes.BondDistanceDTO, error) {
	mol, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := domainMol.AtomDistance(mol.Structure, atom1, atom2)
	if err != nil {
		return nil, err
	}
	return &mtypes.BondDistanceDTO{Atom1: atom1, Atom2: atom2, Distance: d}, nil
}

func (s *serviceImpl) find(ctx context.Context, id string) (*domainMol.Molecule, error) {
	mid := common.ID(strings.TrimSpace(id))
	if err := mid.Validate(); err != nil {
		return nil, errors.InvalidParam("invalid molecule id").WithDetail(err.Error())
	}
	return s.repo.FindByID(ctx, mid)
}

func (s *serviceImpl) lock(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Acquire(ctx, "molecule:"+strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release molecule lock", logging.String(logging.FieldMoleculeID, id), logging.Err(err))
		}
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Side effects
// ─────────────────────────────────────────────────────────────────────────────

// archive stores the raw upload.  Failures are logged, never returned.
func (s *serviceImpl) archive(ctx context.Context, mol *domainMol.Molecule, data []byte) {
	if s.objects == nil {
		return
	}
	key := archivePrefix + mol.ID.String() + "/" + path.Base(mol.Filename)
	if err := s.objects.PutObject(ctx, key, data, "chemical/x-"+mol.Format); err != nil {
		s.logger.Warn("failed to archive upload",
			logging.String(logging.FieldMoleculeID, mol.ID.String()),
			logging.Err(err))
	}
}

// index mirrors the molecule into the search index.  Failures are logged,
// never returned.
func (s *serviceImpl) index(ctx context.Context, mol *domainMol.Molecule) {
	if s.search == nil {
		return
	}
	dto := mol.ToDTO()
	if err := s.search.Index(ctx, &dto); err != nil {
		s.logger.Warn("failed to index molecule",
			logging.String(logging.FieldMoleculeID, mol.ID.String()),
			logging.Err(err))
	}
}

func (s *serviceImpl) unindex(ctx context.Context, id common.ID) {
	if s.search == nil {
		return
	}
	if err := s.search.Remove(ctx, id); err != nil {
		s.logger.Warn("failed to remove molecule from search index",
			logging.String(logging.FieldMoleculeID, id.String()),
			logging.Err(err))
	}
}

// publish drains the aggregate's events.  Failures are logged, never returned.
func (s *serviceImpl) publish(ctx context.Context, mol *domainMol.Molecule) {
	events := mol.Events()
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		env := toEnvelope(e, mol)
		if err := s.publisher.PublishMoleculeEvent(ctx, env); err != nil {
			s.logger.Warn("failed to publish molecule event",
				logging.String("event_type", env.EventType),
				logging.String(logging.FieldMoleculeID, mol.ID.String()),
				logging.Err(err))
		}
	}
}

func toEnvelope(e domainMol.DomainEvent, mol *domainMol.Molecule) *mtypes.MoleculeEvent {
	env := &mtypes.MoleculeEvent{
		EventID:    uuid.NewString(),
		EventType:  e.EventType(),
		MoleculeID: e.AggregateID(),
		Source:     mol.Source,
		OccurredAt: common.NewTimestamp(),
	}
	if mol.Structure != nil {
		env.Formula = mol.Structure.Formula
		env.AtomCount = mol.Structure.AtomCount
	}
	return env
}

//Personal.AI order the ending
