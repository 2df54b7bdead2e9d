package enums

// CartMergeMode describes which path a guest cart merge took.
type CartMergeMode string

const (
	CartMergeModeNoop   CartMergeMode = "noop"
	CartMergeModeReown  CartMergeMode = "reown"
	CartMergeModeMerged CartMergeMode = "merge"
)

// String implements fmt.Stringer.
func (m CartMergeMode) String() string {
	return string(m)
}
