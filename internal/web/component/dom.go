package component

// HTMX target element IDs.
const (
	IDError    = "error"
	IDGameList = "game-list"
)

// HTMX target selectors.
const (
	TargetError      = "#" + IDError
	TargetGameList   = "#" + IDGameList
	TargetClosestRow = "closest li"
)

// CSS class names.
const (
	ClassSiteHeader = "site-header"
	ClassSiteTitle  = "site-title"
	ClassToast      = "toast"
	ClassPagination = "pagination"
)
