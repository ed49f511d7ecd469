package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/parsers/btrees"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Problem severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// TreeProblem is one inconsistency found in a tree node
type TreeProblem struct {
	Block    uint32 `json:"block" yaml:"block"`
	Level    uint16 `json:"level" yaml:"level"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// TreeReport summarises a full tree verification
type TreeReport struct {
	RootBlock     uint32        `json:"root_block" yaml:"root_block"`
	Height        uint16        `json:"height" yaml:"height"`
	InternalNodes int           `json:"internal_nodes" yaml:"internal_nodes"`
	Leaves        int           `json:"leaves" yaml:"leaves"`
	Items         int           `json:"items" yaml:"items"`
	Problems      []TreeProblem `json:"problems" yaml:"problems"`
}

// Errors returns the number of error level problems
func (r *TreeReport) Errors() int {
	n := 0
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Clean reports whether no errors were found
func (r *TreeReport) Clean() bool {
	return r.Errors() == 0
}

// keyRange bounds the keys a subtree may hold. A nil bound is open.
type keyRange struct {
	lower *types.Key
	upper *types.Key
}

func (kr keyRange) contains(key types.Key) bool {
	if kr.lower != nil && types.CompareKeys(key, *kr.lower) < 0 {
		return false
	}
	return kr.upper == nil || types.CompareKeys(key, *kr.upper) < 0
}

type treeVerifier struct {
	fs        *FileSystem
	validator *btrees.NodeValidator
	report    *TreeReport
	seen      map[uint32]bool
}

// VerifyTree walks every node reachable from the root and checks node
// layout, levels, key ordering against the parent delimiters and the used
// sizes recorded in child pointers. Inconsistencies are collected in the
// report; the error is reserved for cancellation.
func (fs *FileSystem) VerifyTree(ctx context.Context) (*TreeReport, error) {
	sb := fs.superblock
	v := &treeVerifier{
		fs:        fs,
		validator: btrees.NewNodeValidator(sb.BlockCount()),
		report: &TreeReport{
			RootBlock: sb.RootBlock(),
			Height:    sb.TreeHeight(),
			Problems:  []TreeProblem{},
		},
		seen: make(map[uint32]bool),
	}

	if sb.TreeHeight() < types.LeafLevel {
		v.problem(sb.RootBlock(), 0, SeverityError, "superblock tree height is %d", sb.TreeHeight())
		return v.report, nil
	}

	if err := v.visit(ctx, sb.RootBlock(), sb.TreeHeight(), keyRange{}, -1); err != nil {
		return v.report, err
	}

	fs.logger.Info("tree verified",
		zap.Uint32("root_block", v.report.RootBlock),
		zap.Int("internal_nodes", v.report.InternalNodes),
		zap.Int("leaves", v.report.Leaves),
		zap.Int("items", v.report.Items),
		zap.Int("problems", len(v.report.Problems)))
	return v.report, nil
}

func (v *treeVerifier) problem(block uint32, level uint16, severity, format string, args ...any) {
	p := TreeProblem{Block: block, Level: level, Severity: severity, Message: fmt.Sprintf(format, args...)}
	v.report.Problems = append(v.report.Problems, p)
	v.fs.logger.Debug("tree problem", zap.Uint32("block", block), zap.String("severity", severity), zap.String("message", p.Message))
}

// visit checks one node and descends into its children. recordedSize is
// the used size stored by the parent, or -1 for the root.
func (v *treeVerifier) visit(ctx context.Context, block uint32, level uint16, bounds keyRange, recordedSize int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if v.seen[block] {
		v.problem(block, level, SeverityError, "block is referenced more than once")
		return nil
	}
	v.seen[block] = true

	data, err := v.fs.readBlock(block)
	if err != nil {
		v.problem(block, level, SeverityError, "%v", err)
		return nil
	}
	if actual := v.fs.endian.Uint16(data[0:2]); actual != level {
		v.problem(block, level, SeverityError, "node level is %d, expected %d", actual, level)
		return nil
	}

	node, err := btrees.NewTreeNodeReader(data, v.fs.endian)
	if err != nil {
		v.problem(block, level, SeverityError, "%v", err)
		return nil
	}

	result := v.validator.ValidateNode(node)
	for _, msg := range result.Errors {
		v.problem(block, level, SeverityError, "%s", msg)
	}
	for _, msg := range result.Warnings {
		v.problem(block, level, SeverityWarning, "%s", msg)
	}

	if used := btrees.UsedSpace(node); recordedSize >= 0 && used != recordedSize {
		v.problem(block, level, SeverityWarning, "parent records %d used bytes, node uses %d", recordedSize, used)
	}

	if node.IsLeaf() {
		v.report.Leaves++
		v.report.Items += int(node.ItemCount())
		v.checkLeafBounds(block, node, bounds)
		return nil
	}

	v.report.InternalNodes++
	return v.visitChildren(ctx, block, node, bounds)
}

func (v *treeVerifier) checkLeafBounds(block uint32, node interfaces.TreeNodeReader, bounds keyRange) {
	for i := 0; i < int(node.ItemCount()); i++ {
		header, err := node.ItemHeader(i)
		if err != nil {
			return
		}
		if !bounds.contains(header.Key) {
			v.problem(block, node.Level(), SeverityError, "item %d key %s lies outside the parent delimiters", i, header.Key)
		}
	}
}

func (v *treeVerifier) visitChildren(ctx context.Context, block uint32, node interfaces.TreeNodeReader, bounds keyRange) error {
	count := int(node.ItemCount())
	keys := make([]types.Key, count)
	for i := range keys {
		key, err := node.Key(i)
		if err != nil {
			v.problem(block, node.Level(), SeverityError, "key %d: %v", i, err)
			return nil
		}
		if !bounds.contains(key) {
			v.problem(block, node.Level(), SeverityError, "key %d %s lies outside the parent delimiters", i, key)
		}
		keys[i] = key
	}

	for i := 0; i <= count; i++ {
		child, err := node.Child(i)
		if err != nil {
			v.problem(block, node.Level(), SeverityError, "child %d: %v", i, err)
			return nil
		}
		if child.BlockNumber == 0 || child.BlockNumber >= v.fs.superblock.BlockCount() {
			continue
		}

		childBounds := bounds
		if i > 0 {
			childBounds.lower = &keys[i-1]
		}
		if i < count {
			childBounds.upper = &keys[i]
		}
		if err := v.visit(ctx, child.BlockNumber, node.Level()-1, childBounds, int(child.Size)); err != nil {
			return err
		}
	}
	return nil
}
