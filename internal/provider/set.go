package provider

import (
	"context"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/entity"
	"github.com/serik1987/corefacility/internal/repository"
)

// Entity set readers. Each reader lowers the declared filters of its class
// onto the repository filter struct and materializes rows as wrapped
// entities; every set operation costs exactly one datastore query.

// optsOf converts a set window into repository pagination. A negative limit
// means unbounded.
func optsOf(q entity.Query) repository.ListOptions {
	limit := q.Limit
	if limit < 0 {
		limit = 0
	}
	return repository.ListOptions{Offset: q.Offset, Limit: limit}
}

func stringFilter(value any) error {
	if _, ok := value.(string); !ok {
		return domain.NewFieldError("filter", "must be a string")
	}
	return nil
}

func idFilter(value any) error {
	switch value.(type) {
	case int64, int:
		return nil
	default:
		return domain.NewFieldError("filter", "must be an integer id")
	}
}

func asID(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// UserSet opens the set of user entities. Declared filters: "name" (login,
// name or surname substring) and "group" (membership). Ordered by login.
func (r *Registry) UserSet(repo repository.UserRepository) *entity.Set[*entity.User] {
	return entity.NewSet[*entity.User](
		userReader{reg: r, repo: repo},
		map[string]entity.FilterSpec{
			"name":  {Check: stringFilter},
			"group": {Check: idFilter},
		},
		true,
	)
}

type userReader struct {
	reg  *Registry
	repo repository.UserRepository
}

func (r userReader) filterOf(q entity.Query) repository.UserFilter {
	var f repository.UserFilter
	if v, ok := q.Filters["name"]; ok {
		f.NameSubstring, _ = v.(string)
	}
	if v, ok := q.Filters["group"]; ok {
		f.GroupID = asID(v)
	}
	return f
}

func (r userReader) Read(ctx context.Context, q entity.Query) ([]*entity.User, error) {
	rows, err := r.repo.List(ctx, r.filterOf(q), optsOf(q))
	if err != nil {
		return nil, err
	}
	users := make([]*entity.User, len(rows))
	for i, row := range rows {
		users[i] = r.reg.WrapUser(row)
	}
	return users, nil
}

func (r userReader) Count(ctx context.Context, q entity.Query) (int64, error) {
	return r.repo.Count(ctx, r.filterOf(q))
}

func (r userReader) GetByID(ctx context.Context, q entity.Query, id int64) (*entity.User, error) {
	row, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.reg.WrapUser(row), nil
}

func (r userReader) GetByAlias(ctx context.Context, q entity.Query, alias string) (*entity.User, error) {
	row, err := r.repo.GetByLogin(ctx, alias)
	if err != nil {
		return nil, err
	}
	return r.reg.WrapUser(row), nil
}

// GroupSet opens the set of group entities. Declared filters: "name"
// (substring), "member" and "governor" (user ids). Ordered by name. Groups
// carry no alias lookup.
func (r *Registry) GroupSet(repo repository.GroupRepository) *entity.Set[*entity.Group] {
	return entity.NewSet[*entity.Group](
		groupReader{reg: r, repo: repo},
		map[string]entity.FilterSpec{
			"name":     {Check: stringFilter},
			"member":   {Check: idFilter},
			"governor": {Check: idFilter},
		},
		false,
	)
}

type groupReader struct {
	reg  *Registry
	repo repository.GroupRepository
}

func (r groupReader) filterOf(q entity.Query) repository.GroupFilter {
	var f repository.GroupFilter
	if v, ok := q.Filters["name"]; ok {
		f.NameSubstring, _ = v.(string)
	}
	if v, ok := q.Filters["member"]; ok {
		f.MemberID = asID(v)
	}
	if v, ok := q.Filters["governor"]; ok {
		f.GovernorID = asID(v)
	}
	return f
}

func (r groupReader) Read(ctx context.Context, q entity.Query) ([]*entity.Group, error) {
	rows, err := r.repo.List(ctx, r.filterOf(q), optsOf(q))
	if err != nil {
		return nil, err
	}
	groups := make([]*entity.Group, len(rows))
	for i, row := range rows {
		groups[i] = r.reg.WrapGroup(row)
	}
	return groups, nil
}

func (r groupReader) Count(ctx context.Context, q entity.Query) (int64, error) {
	return r.repo.Count(ctx, r.filterOf(q))
}

func (r groupReader) GetByID(ctx context.Context, q entity.Query, id int64) (*entity.Group, error) {
	row, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.reg.WrapGroup(row), nil
}

func (r groupReader) GetByAlias(ctx context.Context, q entity.Query, alias string) (*entity.Group, error) {
	return nil, domain.NewDomainError(domain.ErrEntityNotFound, "groups have no alias", alias)
}

// ProjectSet opens the set of project entities. Declared filters: "name"
// (alias or name substring) and "participant" (visibility to one user).
// Ordered by alias.
func (r *Registry) ProjectSet(repo repository.ProjectRepository) *entity.Set[*entity.Project] {
	return entity.NewSet[*entity.Project](
		projectReader{reg: r, repo: repo},
		map[string]entity.FilterSpec{
			"name":        {Check: stringFilter},
			"participant": {Check: idFilter},
		},
		true,
	)
}

type projectReader struct {
	reg  *Registry
	repo repository.ProjectRepository
}

func (r projectReader) filterOf(q entity.Query) repository.ProjectFilter {
	var f repository.ProjectFilter
	if v, ok := q.Filters["name"]; ok {
		f.NameSubstring, _ = v.(string)
	}
	if v, ok := q.Filters["participant"]; ok {
		f.ParticipantID = asID(v)
	}
	return f
}

func (r projectReader) Read(ctx context.Context, q entity.Query) ([]*entity.Project, error) {
	rows, err := r.repo.List(ctx, r.filterOf(q), optsOf(q))
	if err != nil {
		return nil, err
	}
	projects := make([]*entity.Project, len(rows))
	for i, row := range rows {
		projects[i] = r.reg.WrapProject(row)
	}
	return projects, nil
}

func (r projectReader) Count(ctx context.Context, q entity.Query) (int64, error) {
	return r.repo.Count(ctx, r.filterOf(q))
}

func (r projectReader) GetByID(ctx context.Context, q entity.Query, id int64) (*entity.Project, error) {
	row, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.reg.WrapProject(row), nil
}

func (r projectReader) GetByAlias(ctx context.Context, q entity.Query, alias string) (*entity.Project, error) {
	row, err := r.repo.GetByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	return r.reg.WrapProject(row), nil
}

// Interface checks.
var (
	_ entity.Reader[*entity.User]    = (*userReader)(nil)
	_ entity.Reader[*entity.Group]   = (*groupReader)(nil)
	_ entity.Reader[*entity.Project] = (*projectReader)(nil)
)
