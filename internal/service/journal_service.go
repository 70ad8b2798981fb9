package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/journal"
	"github.com/serik1987/corefacility/internal/lock"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/repository"
)

// JournalService manages the laboratory journal tree of each project:
// path-addressed records, category timestamp aggregation, custom parameters,
// hashtags and temporal search.
type JournalService struct {
	records     repository.RecordRepository
	descriptors repository.DescriptorRepository
	hashtags    repository.HashtagRepository
	cache       repository.Cache
	locker      lock.Locker
	cfg         config.JournalConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	keys        repository.CacheKey
}

// NewJournalService creates a journal service.
func NewJournalService(records repository.RecordRepository, descriptors repository.DescriptorRepository,
	hashtags repository.HashtagRepository, cache repository.Cache, locker lock.Locker,
	cfg config.JournalConfig, m *metrics.Metrics, logger zerolog.Logger) *JournalService {
	return &JournalService{
		records:     records,
		descriptors: descriptors,
		hashtags:    hashtags,
		cache:       cache,
		locker:      locker,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With().Str("service", "journal").Logger(),
	}
}

// generation reads the path cache generation of a project tree. Increment
// with delta zero reads the counter atomically in both cache backends.
func (s *JournalService) generation(ctx context.Context, projectID int64) (int64, bool) {
	gen, err := s.cache.Increment(ctx, s.keys.JournalPathGen(projectID), 0)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// bumpGeneration invalidates every cached path of a project tree at once.
func (s *JournalService) bumpGeneration(ctx context.Context, projectID int64) {
	if _, err := s.cache.Increment(ctx, s.keys.JournalPathGen(projectID), 1); err != nil {
		s.logger.Warn().Err(err).Int64("project_id", projectID).Msg("failed to bump path cache generation")
	}
}

// pathCacheOutcome records a cache lookup in the metrics.
func (s *JournalService) pathCacheOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.JournalPathCache.WithLabelValues(outcome).Inc()
	}
}

// splitPath normalizes a record path into its segments. The root record is
// the empty segment list.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if !journal.SegmentPattern.MatchString(seg) {
			return nil, domain.NewDomainError(domain.ErrEntityNotFound,
				"malformed path segment", seg)
		}
	}
	return segments, nil
}

// ResolvePath resolves a slash-joined alias path to its record. Resolutions
// are cached per tree generation; a cache hit costs one primary key lookup,
// a miss one query per tree level.
func (s *JournalService) ResolvePath(ctx context.Context, projectID int64, path string) (*journal.Record, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	canonical := "/" + strings.Join(segments, "/")

	gen, cacheable := s.generation(ctx, projectID)
	if cacheable {
		key := s.keys.JournalPath(projectID, gen, canonical)
		if raw, err := s.cache.Get(ctx, key); err == nil {
			if id, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
				if rec, gerr := s.records.GetByID(ctx, id); gerr == nil {
					s.pathCacheOutcome("hit")
					rec.Path = canonical
					return rec, nil
				}
			}
		}
	}
	s.pathCacheOutcome("miss")

	rec, err := s.records.GetRoot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		rec, err = s.records.GetChildByAlias(ctx, rec.ID, seg)
		if err != nil {
			return nil, err
		}
	}
	rec.Path = canonical

	if cacheable {
		key := s.keys.JournalPath(projectID, gen, canonical)
		if err := s.cache.Set(ctx, key, []byte(strconv.FormatInt(rec.ID, 10)), s.cfg.PathCacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("path", canonical).Msg("failed to cache path resolution")
		}
	}
	return rec, nil
}

// CreateRecordInput contains the data needed to create a journal record.
type CreateRecordInput struct {
	ProjectID int64
	ParentID  int64
	Type      journal.RecordType

	// Alias names data and category records among their siblings.
	Alias string

	// Name is the display name of service records.
	Name string

	Comments string
	Datetime *time.Time
}

// CreateRecord creates a record under a category. The tree root is planted
// with the project and cannot be created here.
func (s *JournalService) CreateRecord(ctx context.Context, input CreateRecordInput) (*journal.Record, error) {
	switch input.Type {
	case journal.TypeData, journal.TypeCategory:
		if !journal.SegmentPattern.MatchString(input.Alias) {
			return nil, domain.NewFieldError("alias", "does not match the required pattern")
		}
	case journal.TypeService:
		if input.Name == "" {
			return nil, domain.NewFieldError("name", "is required")
		}
		if input.Alias != "" {
			return nil, domain.NewFieldError("alias", "is not admissible on service records")
		}
	default:
		return nil, domain.NewFieldError("type", "must be data, category or service")
	}

	parent, err := s.records.GetByID(ctx, input.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.ProjectID != input.ProjectID {
		return nil, domain.NewDomainError(domain.ErrEntityNotFound,
			"parent belongs to another project", "")
	}
	if !parent.IsCategoryLike() {
		return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"only root and category records hold children", parent.Alias)
	}

	parentID := parent.ID
	rec := &journal.Record{
		ProjectID: input.ProjectID,
		ParentID:  &parentID,
		Type:      input.Type,
		Alias:     input.Alias,
		Name:      input.Name,
		Comments:  input.Comments,
		Datetime:  input.Datetime,
		Level:     parent.Level + 1,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}

	if input.Datetime != nil && !rec.IsService() {
		if err := s.propagateTimestamps(ctx, input.ProjectID, parent); err != nil {
			return nil, err
		}
	}
	s.logger.Info().
		Int64("record_id", rec.ID).
		Int64("project_id", input.ProjectID).
		Str("type", string(input.Type)).
		Msg("record created")
	return rec, nil
}

// UpdateRecordInput carries a partial record update. A record cannot move
// to another parent; recreate it instead.
type UpdateRecordInput struct {
	ParentID *int64
	Alias    *string
	Name     *string
	Comments *string

	Datetime      *time.Time
	ClearDatetime bool
}

// UpdateRecord applies a partial update, repropagating category timestamps
// on datetime changes and invalidating cached paths on alias changes.
func (s *JournalService) UpdateRecord(ctx context.Context, id int64, input UpdateRecordInput) (*journal.Record, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.ParentID != nil {
		current := int64(0)
		if rec.ParentID != nil {
			current = *rec.ParentID
		}
		if *input.ParentID != current {
			return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
				"records cannot move to another parent", rec.Alias)
		}
	}

	aliasChanged := false
	if input.Alias != nil && *input.Alias != rec.Alias {
		if rec.Type == journal.TypeRoot || rec.IsService() {
			return nil, domain.NewFieldError("alias", "is not admissible on this record")
		}
		if !journal.SegmentPattern.MatchString(*input.Alias) {
			return nil, domain.NewFieldError("alias", "does not match the required pattern")
		}
		rec.Alias = *input.Alias
		aliasChanged = true
	}
	if input.Name != nil {
		rec.Name = *input.Name
	}
	if input.Comments != nil {
		rec.Comments = *input.Comments
	}

	datetimeChanged := false
	if input.ClearDatetime {
		rec.Datetime = nil
		datetimeChanged = true
	} else if input.Datetime != nil {
		rec.Datetime = input.Datetime
		datetimeChanged = true
	}

	if err := s.records.Update(ctx, rec); err != nil {
		return nil, err
	}

	if aliasChanged {
		s.bumpGeneration(ctx, rec.ProjectID)
	}
	if datetimeChanged && !rec.IsService() && rec.ParentID != nil {
		parent, err := s.records.GetByID(ctx, *rec.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.propagateTimestamps(ctx, rec.ProjectID, parent); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// DeleteRecord removes a record and its subtree. The tree root cannot be
// deleted.
func (s *JournalService) DeleteRecord(ctx context.Context, id int64) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Type == journal.TypeRoot {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"the tree root cannot be deleted", "")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.bumpGeneration(ctx, rec.ProjectID)

	if !rec.IsService() && rec.ParentID != nil {
		parent, err := s.records.GetByID(ctx, *rec.ParentID)
		if err != nil {
			return err
		}
		if err := s.propagateTimestamps(ctx, rec.ProjectID, parent); err != nil {
			return err
		}
	}
	s.logger.Info().Int64("record_id", id).Msg("record deleted")
	return nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// propagateTimestamps recomputes the datetime span of a category from its
// children and walks the change up the tree, stopping at the first ancestor
// whose span did not move. A per-project lock serializes concurrent
// propagations.
func (s *JournalService) propagateTimestamps(ctx context.Context, projectID int64, from *journal.Record) error {
	key := lock.Keys.JournalTree(projectID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, 30*time.Second, 10, 100*time.Millisecond)
	if err != nil || !acquired {
		return fmt.Errorf("%w: journal tree lock unavailable", ErrInternalError)
	}
	defer s.locker.Release(ctx, key)

	cur := from
	for cur != nil && cur.IsCategoryLike() {
		min, max, err := s.records.ChildDatetimeRange(ctx, cur.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if equalTimePtr(cur.Datetime, min) && equalTimePtr(cur.FinishTime, max) {
			break
		}
		cur.Datetime = min
		cur.FinishTime = max
		if err := s.records.Update(ctx, cur); err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if cur.ParentID == nil {
			break
		}
		parent, err := s.records.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		cur = parent
	}
	return nil
}

// SearchInput narrows and paginates a record search.
type SearchInput struct {
	Filter *journal.Filter

	// RelativeHashtags, MinGap and MaxGap declare a hashtag-relative
	// datetime window: the union over reference records carrying any of the
	// hashtags of [reference+MinGap, reference+MaxGap].
	RelativeHashtags []string
	MinGap           time.Duration
	MaxGap           time.Duration

	Offset int64
	Limit  int64
}

// SearchOutput carries one page of matching records.
type SearchOutput struct {
	Records []*journal.Record
	Total   int64
}

// Search runs a filtered record search in datetime order. The page and the
// total cost one query each; custom parameter values of the page hydrate in
// one more.
func (s *JournalService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	f := input.Filter
	if len(input.RelativeHashtags) > 0 {
		refCap := s.cfg.HashtagReferenceCap
		refs, err := s.records.ReferenceDatetimes(ctx, f.ProjectID, input.RelativeHashtags, refCap)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if refCap > 0 && len(refs) > refCap {
			return nil, journal.CapExceededError(refCap)
		}
		window := journal.WindowFromReferences(refs, input.MinGap, input.MaxGap)
		f.Datetime = f.Datetime.And(window)
	}

	rows, err := s.records.Search(ctx, f, repository.ListOptions{Offset: input.Offset, Limit: input.Limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	total, err := s.records.CountSearch(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.Type == journal.TypeData {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) > 0 {
		params, err := s.records.ParamsForRecords(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		for _, r := range rows {
			if stored, ok := params[r.ID]; ok {
				r.CustomValues = make(map[string]any, len(stored))
				for k, v := range stored {
					r.CustomValues[k] = v
				}
			}
		}
	}
	return &SearchOutput{Records: rows, Total: total}, nil
}

// ancestorChain returns the category-like ancestors of a record, root
// first, excluding the record itself. One query per tree level.
func (s *JournalService) ancestorChain(ctx context.Context, rec *journal.Record) ([]*journal.Record, error) {
	var chain []*journal.Record
	cur := rec
	for cur.ParentID != nil {
		parent, err := s.records.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append([]*journal.Record{parent}, chain...)
		cur = parent
	}
	return chain, nil
}

// effectiveDescriptors merges the descriptors declared along a record's
// ancestor chain, nearest declaration winning per identifier. When the
// record itself is category-like its own descriptors join the merge.
func (s *JournalService) effectiveDescriptors(ctx context.Context, rec *journal.Record,
	chain []*journal.Record) (map[string]*journal.Descriptor, []int64, error) {
	catIDs := make([]int64, 0, len(chain)+1)
	for _, anc := range chain {
		catIDs = append(catIDs, anc.ID)
	}
	if rec.IsCategoryLike() {
		catIDs = append(catIDs, rec.ID)
	}
	byCategory, err := s.descriptors.ListForCategories(ctx, catIDs)
	if err != nil {
		return nil, nil, err
	}
	ordered := make([][]*journal.Descriptor, 0, len(catIDs))
	for _, id := range catIDs {
		ordered = append(ordered, byCategory[id])
	}
	return journal.ComputeDescriptors(ordered), catIDs, nil
}

// GetRecord returns a fully hydrated record: its path, hashtags and typed
// custom parameter values with inherited defaults applied.
func (s *JournalService) GetRecord(ctx context.Context, id, userID int64) (*journal.Record, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.ancestorChain(ctx, rec)
	if err != nil {
		return nil, err
	}

	segments := make([]string, 0, len(chain))
	for i, anc := range chain {
		// The root ancestor contributes no path segment.
		if i == 0 {
			continue
		}
		segments = append(segments, anc.Alias)
	}
	if !rec.IsService() && rec.Type != journal.TypeRoot {
		segments = append(segments, rec.Alias)
	}
	rec.Path = "/" + strings.Join(segments, "/")
	if len(chain) > 0 {
		parent := chain[len(chain)-1]
		if rec.Datetime != nil && parent.Datetime != nil {
			d := rec.Datetime.Sub(*parent.Datetime)
			rec.RelativeTime = &d
		}
	}

	tags, err := s.hashtags.ListForRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	rec.Hashtags = make([]string, len(tags))
	for i, t := range tags {
		rec.Hashtags[i] = t.Description
	}

	descriptors, _, err := s.effectiveDescriptors(ctx, rec, chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(descriptors) > 0 {
		valueIDs := make([]int64, 0, len(chain)+1)
		for _, anc := range chain {
			valueIDs = append(valueIDs, anc.ID)
		}
		valueIDs = append(valueIDs, rec.ID)
		stored, err := s.records.ParamsForRecords(ctx, valueIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		ancestorValues := make([]map[string]any, 0, len(chain))
		for _, anc := range chain {
			ancestorValues = append(ancestorValues, coerceStored(descriptors, stored[anc.ID]))
		}
		values := journal.DefaultValues(descriptors, ancestorValues)
		for k, v := range coerceStored(descriptors, stored[rec.ID]) {
			values[k] = v
		}
		rec.CustomValues = values
	}
	return rec, nil
}

// coerceStored converts stored text parameter values to their declared
// value classes, dropping values of undeclared identifiers.
func coerceStored(descriptors map[string]*journal.Descriptor, stored map[string]string) map[string]any {
	out := make(map[string]any, len(stored))
	for id, raw := range stored {
		d, ok := descriptors[id]
		if !ok {
			continue
		}
		if v, err := d.Coerce(raw); err == nil {
			out[id] = v
		}
	}
	return out
}

// valueText serializes a coerced parameter value to its stored text form.
func valueText(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// SetCustomValue assigns a custom parameter value on a data or category
// record. Category values act as inherited defaults for descendants.
func (s *JournalService) SetCustomValue(ctx context.Context, recordID int64, identifier string, value any) error {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.IsService() {
		return domain.NewDomainError(domain.ErrOperationNotPermitted,
			"service records carry no custom parameters", "")
	}
	chain, err := s.ancestorChain(ctx, rec)
	if err != nil {
		return err
	}
	descriptors, _, err := s.effectiveDescriptors(ctx, rec, chain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	d, ok := descriptors[identifier]
	if !ok {
		return domain.NewFieldError("custom_"+identifier, "is not declared for this record")
	}
	coerced, err := d.Coerce(value)
	if err != nil {
		return err
	}
	if err := s.records.SetParam(ctx, recordID, identifier, valueText(coerced)); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// DeleteCustomValue removes a custom parameter value from a record.
func (s *JournalService) DeleteCustomValue(ctx context.Context, recordID int64, identifier string) error {
	if err := s.records.DeleteParam(ctx, recordID, identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// SetChecked stores the per-user checked flag of a record.
func (s *JournalService) SetChecked(ctx context.Context, recordID, userID int64, checked bool) error {
	if _, err := s.records.GetByID(ctx, recordID); err != nil {
		return err
	}
	if err := s.records.SetChecked(ctx, recordID, userID, checked); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// AttachHashtag tags a record, creating the project hashtag when absent.
func (s *JournalService) AttachHashtag(ctx context.Context, recordID int64, description string) (*journal.Hashtag, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	tag, err := s.hashtags.Ensure(ctx, rec.ProjectID, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.hashtags.Attach(ctx, recordID, tag.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return tag, nil
}

// DetachHashtag untags a record.
func (s *JournalService) DetachHashtag(ctx context.Context, recordID int64, description string) error {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	tag, err := s.hashtags.Ensure(ctx, rec.ProjectID, description)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.hashtags.Detach(ctx, recordID, tag.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// ListHashtags returns the hashtags of a project, description-ascending.
func (s *JournalService) ListHashtags(ctx context.Context, projectID int64) ([]*journal.Hashtag, error) {
	tags, err := s.hashtags.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return tags, nil
}

// CreateDescriptorInput contains the data needed to declare a custom
// parameter on a category.
type CreateDescriptorInput struct {
	CategoryID int64
	Identifier string
	Type       journal.DescriptorType
	Default    string
	Values     []string
}

// CreateDescriptor declares a custom parameter on a category. Records below
// the category may carry values for it.
func (s *JournalService) CreateDescriptor(ctx context.Context, input CreateDescriptorInput) (*journal.Descriptor, error) {
	cat, err := s.records.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if !cat.IsCategoryLike() {
		return nil, domain.NewDomainError(domain.ErrOperationNotPermitted,
			"descriptors attach to root and category records", cat.Alias)
	}
	if !journal.SegmentPattern.MatchString(input.Identifier) {
		return nil, domain.NewFieldError("identifier", "does not match the required pattern")
	}
	d := &journal.Descriptor{
		CategoryID: input.CategoryID,
		Identifier: input.Identifier,
		Type:       input.Type,
		Default:    input.Default,
		Values:     input.Values,
	}
	if d.Default != "" {
		if _, err := d.Coerce(d.Default); err != nil {
			return nil, err
		}
	}
	if err := s.descriptors.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return d, nil
}

// DeleteDescriptor removes a custom parameter declaration.
func (s *JournalService) DeleteDescriptor(ctx context.Context, id int64) error {
	if err := s.descriptors.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// ListDescriptors returns the effective descriptors of a record: its own
// chain merged nearest-wins, identifier-keyed.
func (s *JournalService) ListDescriptors(ctx context.Context, recordID int64) (map[string]*journal.Descriptor, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	chain, err := s.ancestorChain(ctx, rec)
	if err != nil {
		return nil, err
	}
	descriptors, _, err := s.effectiveDescriptors(ctx, rec, chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return descriptors, nil
}
