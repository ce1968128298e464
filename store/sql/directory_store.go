package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-noticast/core"
	"github.com/uptrace/bun"
)

// DirectoryStore resolves identifiers against the device and group tables.
// When several rows match, the lowest arn wins; group members are returned
// in arn order.
type DirectoryStore struct {
	db      *bun.DB
	devices repository.Repository[*deviceRecord]
	groups  repository.Repository[*groupRecord]
	policy  core.MatchPolicy
}

func NewDirectoryStore(db *bun.DB, policy core.MatchPolicy) (*DirectoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if policy == "" {
		policy = core.MatchPolicyExact
	}
	if _, err := core.ParseMatchPolicy(string(policy)); err != nil {
		return nil, err
	}
	devices := repository.NewRepository[*deviceRecord](db, deviceHandlers())
	if validator, ok := devices.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid device repository wiring: %w", err)
		}
	}
	groups := repository.NewRepository[*groupRecord](db, groupHandlers())
	if validator, ok := groups.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid group repository wiring: %w", err)
		}
	}
	return &DirectoryStore{db: db, devices: devices, groups: groups, policy: policy}, nil
}

func (s *DirectoryStore) Policy() core.MatchPolicy {
	if s == nil {
		return core.MatchPolicyExact
	}
	return s.policy
}

func (s *DirectoryStore) Resolve(ctx context.Context, identifier string) (core.ResolvedTarget, error) {
	if s == nil || s.devices == nil || s.groups == nil {
		return core.ResolvedTarget{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return core.ResolvedTarget{}, core.NewTargetNotFoundError(identifier)
	}

	device, found, err := s.findDevice(ctx, identifier)
	if err != nil {
		return core.ResolvedTarget{}, err
	}
	if found {
		return core.ResolvedTarget{Devices: []core.Device{toDevice(device)}}, nil
	}

	group, found, err := s.findGroup(ctx, identifier)
	if err != nil {
		return core.ResolvedTarget{}, err
	}
	if !found {
		return core.ResolvedTarget{}, core.NewTargetNotFoundError(identifier)
	}
	members, err := s.Members(ctx, group.ARN)
	if err != nil {
		return core.ResolvedTarget{}, err
	}
	return core.ResolvedTarget{Devices: members, IsGroup: true}, nil
}

// Members lists a group's devices ordered by arn.
func (s *DirectoryStore) Members(ctx context.Context, groupARN string) ([]core.Device, error) {
	records, _, err := s.devices.List(ctx,
		repository.SelectBy("group_arn", "=", strings.TrimSpace(groupARN)),
		repository.OrderBy("arn ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Device, 0, len(records))
	for _, record := range records {
		out = append(out, toDevice(record))
	}
	return out, nil
}

// SaveGroup inserts a group or refreshes its label.
func (s *DirectoryStore) SaveGroup(ctx context.Context, arn string, label string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: directory store is not configured")
	}
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return fmt.Errorf("sqlstore: group arn is required")
	}
	record := &groupRecord{ARN: arn, Label: strings.TrimSpace(label)}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (arn) DO UPDATE").
		Set("label = EXCLUDED.label").
		Exec(ctx)
	return err
}

// SaveDevice inserts a device or moves it to another group.
func (s *DirectoryStore) SaveDevice(ctx context.Context, arn string, groupARN string, label string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: directory store is not configured")
	}
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return fmt.Errorf("sqlstore: device arn is required")
	}
	record := &deviceRecord{
		ARN:      arn,
		GroupARN: strings.TrimSpace(groupARN),
		Label:    strings.TrimSpace(label),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (arn) DO UPDATE").
		Set("group_arn = EXCLUDED.group_arn").
		Set("label = EXCLUDED.label").
		Exec(ctx)
	return err
}

func (s *DirectoryStore) findDevice(ctx context.Context, identifier string) (*deviceRecord, bool, error) {
	records, err := lookupByARN(ctx, s.devices, s.policy, identifier)
	if err != nil {
		return nil, false, err
	}
	for _, record := range records {
		if s.policy.Matches(record.ARN, identifier) {
			return record, true, nil
		}
	}
	return nil, false, nil
}

func (s *DirectoryStore) findGroup(ctx context.Context, identifier string) (*groupRecord, bool, error) {
	records, err := lookupByARN(ctx, s.groups, s.policy, identifier)
	if err != nil {
		return nil, false, err
	}
	for _, record := range records {
		if s.policy.Matches(record.ARN, identifier) {
			return record, true, nil
		}
	}
	return nil, false, nil
}

// lookupByARN narrows candidates in SQL. Suffix candidates are confirmed by
// the caller because LIKE is case-insensitive on some dialects.
func lookupByARN[T any](
	ctx context.Context,
	repo repository.Repository[T],
	policy core.MatchPolicy,
	identifier string,
) ([]T, error) {
	if policy == core.MatchPolicySuffix {
		pattern := "%" + escapeLike(identifier)
		records, _, err := repo.List(ctx,
			repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where(`?TableAlias.arn LIKE ? ESCAPE '\'`, pattern)
			}),
			repository.OrderBy("arn ASC"),
		)
		return records, err
	}
	records, _, err := repo.List(ctx,
		repository.SelectBy("arn", "=", identifier),
		repository.OrderBy("arn ASC"),
		repository.SelectPaginate(1, 0),
	)
	return records, err
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func toDevice(record *deviceRecord) core.Device {
	if record == nil {
		return core.Device{}
	}
	return core.Device{ARN: record.ARN, GroupARN: record.GroupARN}
}
