package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

type caseStore interface {
	Get(ctx context.Context, id string) (model.Case, error)
	Save(ctx context.Context, c model.Case) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, selector bson.M, page model.Page) (model.CaseList, error)
}

type CaseService struct {
	cases caseStore
}

func NewCaseService(cases caseStore) *CaseService {
	return &CaseService{cases: cases}
}

// CanAccess is the case access predicate: admins see everything, everybody else only
// cases they are a client or a worker on.
func CanAccess(principal model.Principal, c model.Case) bool {
	if principal.IsAdmin {
		return true
	}
	return slices.Contains(c.Clients, principal.ID) || slices.Contains(c.Workers, principal.ID)
}

// Get returns NotFound for a missing case and Forbidden for an existing one the
// principal may not see.
func (s *CaseService) Get(ctx context.Context, principal model.Principal, caseID string) (model.Case, error) {
	c, err := s.cases.Get(ctx, caseID)
	if errors.Is(err, model.ErrCaseNotFound) {
		return model.Case{}, apierror.NotFound("Case not found", caseID)
	}
	if err != nil {
		return model.Case{}, apierror.Internal(err)
	}

	if !CanAccess(principal, c) {
		return model.Case{}, apierror.Forbidden("You do not have access to this case")
	}

	return c, nil
}

func (s *CaseService) Mine(ctx context.Context, principal model.Principal, page model.Page) (model.CaseList, error) {
	return s.find(ctx, MineSelector(principal), page)
}

func (s *CaseService) Assigned(ctx context.Context, principal model.Principal, page model.Page) (model.CaseList, error) {
	return s.find(ctx, AssignedSelector(principal), page)
}

func (s *CaseService) All(ctx context.Context, principal model.Principal, assignedTo string, page model.Page) (model.CaseList, error) {
	return s.find(ctx, AllSelector(principal, assignedTo), page)
}

func (s *CaseService) find(ctx context.Context, selector bson.M, page model.Page) (model.CaseList, error) {
	list, err := s.cases.Find(ctx, selector, page)
	if err != nil {
		return model.CaseList{}, apierror.Internal(err)
	}
	return list, nil
}

func MineSelector(principal model.Principal) bson.M {
	return memberOf("clients", principal.ID)
}

func AssignedSelector(principal model.Principal) bson.M {
	return memberOf("workers", principal.ID)
}

// AllSelector is the listing form of CanAccess, optionally narrowed to one worker.
func AllSelector(principal model.Principal, assignedTo string) bson.M {
	assignedTo = strings.TrimSpace(assignedTo)

	var visible bson.M
	if principal.IsAdmin {
		visible = bson.M{}
	} else {
		visible = bson.M{"$or": bson.A{
			memberOf("clients", principal.ID),
			memberOf("workers", principal.ID),
		}}
	}

	if assignedTo == "" {
		return visible
	}
	if principal.IsAdmin {
		return memberOf("workers", assignedTo)
	}
	return bson.M{"$and": bson.A{visible, memberOf("workers", assignedTo)}}
}

func memberOf(field string, id string) bson.M {
	return bson.M{field: bson.M{"$elemMatch": bson.M{"$eq": id}}}
}
