package store

import (
	"errors"

	"go.uber.org/zap"

	"github.com/simwire/mibstate/schema"
)

// propagateAdd mirrors a freshly added parent row into its augmented
// children. Each child row gets the parent's index values plus the child's
// own defaults, and is added with propagation disabled: the fan-out is
// always a single flat level.
func (s *Store) propagateAdd(parentOID, instance string, indexValues map[string]schema.Value) {
	for _, child := range s.registry.ChildrenOf(parentOID) {
		if _, exists := s.tables[child.TableOID][instance]; exists {
			continue
		}
		if _, err := s.addInstance(child.TableOID, indexValues, child.Defaults, false); err != nil {
			s.logger.Error("augment add failed",
				zap.String("parent", parentOID),
				zap.String("child", child.TableOID),
				zap.String("instance", instance),
				zap.Error(err))
		}
	}
}

// propagateDelete mirrors a parent row deletion into its augmented
// children, again one flat level with child-side propagation disabled.
// Children that never materialized the row are skipped silently.
func (s *Store) propagateDelete(parentOID string, indexValues map[string]schema.Value) {
	for _, child := range s.registry.ChildrenOf(parentOID) {
		err := s.deleteInstance(child.TableOID, indexValues, false)
		if err != nil && !errors.Is(err, ErrInstanceNotFound) {
			s.logger.Error("augment delete failed",
				zap.String("parent", parentOID),
				zap.String("child", child.TableOID),
				zap.Error(err))
		}
	}
}
