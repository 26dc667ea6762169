package authz

import (
	"fmt"
	"net/http"

	"github.com/openskills/skillhub/pkg/config"
)

// RoleConfig carries the role/scope identifiers and feature flags the table
// construction depends on.
type RoleConfig struct {
	EnableRoles      bool
	AllowPublicLists bool

	Admin   string
	Curator string
	View    string
	Read    string
}

// RoleConfigFrom extracts the table-relevant settings from the auth config.
func RoleConfigFrom(a config.AuthConfig) RoleConfig {
	return RoleConfig{
		EnableRoles:      a.EnableRoles,
		AllowPublicLists: a.AllowPublicLists,
		Admin:            a.RoleAdmin,
		Curator:          a.RoleCurator,
		View:             a.RoleView,
		Read:             a.ScopeRead,
	}
}

// BuildTable constructs the route authorization table. It is the single
// shared constructor invoked by every authentication mode's bootstrap path:
// the table contents depend only on the role configuration, never on the
// mode. Rules are appended in four fixed phases and evaluated first match
// wins, so phase order is load-bearing.
func BuildTable(mode config.AuthMode, rc RoleConfig) *Table {
	_ = mode // accepted for call-site symmetry; see VerifyModeConsistency

	t := &Table{}
	appendPublicPhase(t)
	appendAuthenticatedPhase(t)
	appendListPhase(t, rc)
	if rc.EnableRoles {
		appendRoleGatedPhase(t, rc)
	} else {
		appendNoRolesPhase(t)
	}
	return t
}

// appendPublicPhase marks the routes that require no authentication in any
// configuration: the UI shell, static assets, the whitelabel config, the
// login endpoint, and the read-only search/detail endpoints.
func appendPublicPhase(t *Table) {
	t.append("", publicRule(), "/", "/login", "/login/**", "/login/success")
	t.append("", publicRule(),
		"/assets/**", "/config/**",
		"/*.js", "/*.css", "/*.html", "/*.ico", "/*.png", "/*.svg",
	)
	t.append(http.MethodGet, publicRule(), "/whitelabel/**")
	t.append(http.MethodPost, publicRule(), LoginPath)

	t.append(http.MethodPost, publicRule(), AllVersions(SearchSkills)...)
	t.append(http.MethodPost, publicRule(), AllVersions(SearchCollections)...)
	t.append(http.MethodPost, publicRule(), AllVersions(SkillsFilter)...)
	t.append(http.MethodGet, publicRule(), AllVersions(SkillDetail)...)
	t.append(http.MethodGet, publicRule(), AllVersions(CollectionDetail)...)
	t.append(http.MethodPost, publicRule(), AllVersions(CollectionSkills)...)
	t.append(http.MethodGet, publicRule(), AllVersions(CollectionCSV)...)
	t.append(http.MethodGet, publicRule(), AllVersions(CollectionXLSX)...)
	t.append(http.MethodGet, publicRule(), AllVersions(TaskTextDetail)...)
	t.append(http.MethodGet, publicRule(), AllVersions(TaskMediaDetail)...)
}

// appendAuthenticatedPhase marks the routes requiring any identity but no
// particular role: audit logs, task details, and search metadata.
func appendAuthenticatedPhase(t *Table) {
	t.append(http.MethodGet, authenticatedRule(), AllVersions(SkillAuditLog)...)
	t.append(http.MethodGet, authenticatedRule(), AllVersions(CollectionAuditLog)...)
	t.append(http.MethodGet, authenticatedRule(), AllVersions(TaskSkillsDetail)...)
	t.append(http.MethodGet, authenticatedRule(), AllVersions(TaskBatchDetail)...)
	t.append(http.MethodGet, authenticatedRule(), AllVersions(SearchJobCodes)...)
	t.append(http.MethodGet, authenticatedRule(), AllVersions(SearchKeywords)...)
}

// appendListPhase gates the list endpoints on the public-lists flag.
func appendListPhase(t *Table, rc RoleConfig) {
	predicate := publicRule()
	if !rc.AllowPublicLists {
		predicate = anyOfRule(rc.Admin, rc.Curator, rc.View, rc.Read)
	}
	t.append(http.MethodGet, predicate, AllVersions(SkillsList)...)
	t.append(http.MethodGet, predicate, AllVersions(CollectionsList)...)
}

// appendRoleGatedPhase attaches per-operation role requirements to the write
// endpoints, then closes the table with the API and non-API catch-alls.
func appendRoleGatedPhase(t *Table, rc RoleConfig) {
	editors := anyOfRule(rc.Admin, rc.Curator)
	adminOnly := anyOfRule(rc.Admin)
	readers := anyOfRule(rc.Admin, rc.Curator, rc.View, rc.Read)

	t.append(http.MethodPost, editors, AllVersions(SkillUpdate)...)
	t.append(http.MethodPost, editors, AllVersions(SkillsCreate)...)
	t.append(http.MethodPost, adminOnly, AllVersions(SkillPublish)...)

	t.append(http.MethodPost, editors, AllVersions(CollectionCreate)...)
	t.append(http.MethodPost, adminOnly, AllVersions(CollectionPublish)...)
	t.append(http.MethodPost, editors, AllVersions(CollectionUpdate)...)
	t.append(http.MethodPost, editors, AllVersions(CollectionSkillsUpdate)...)
	t.append(http.MethodDelete, adminOnly, AllVersions(CollectionRemove)...)

	t.append(http.MethodGet, editors, AllVersions(Workspace)...)

	t.append("", readers, "/api/**")
	t.append("", publicRule(), "/**")
}

// appendNoRolesPhase is the simpler closing phase used when role enforcement
// is disabled: writes require authentication, collection delete is denied
// outright as a safety rail, and everything else is public.
func appendNoRolesPhase(t *Table) {
	t.append(http.MethodPost, authenticatedRule(), AllVersions(SkillUpdate)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(SkillsCreate)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(SkillPublish)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(CollectionCreate)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(CollectionPublish)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(CollectionUpdate)...)
	t.append(http.MethodPost, authenticatedRule(), AllVersions(CollectionSkillsUpdate)...)
	t.append(http.MethodDelete, denyRule(), AllVersions(CollectionRemove)...)
	t.append("", publicRule(), "/**")
}

// VerifyModeConsistency asserts at startup that the table is constructed
// identically regardless of which authentication mode built it. Divergence
// between environments is a privilege-escalation or availability bug, so a
// mismatch is fatal.
func VerifyModeConsistency(rc RoleConfig) error {
	modes := []config.AuthMode{config.ModeOAuth2, config.ModeSingleAuth, config.ModeHybrid}
	reference := BuildTable(modes[0], rc)

	for _, mode := range modes[1:] {
		other := BuildTable(mode, rc)
		if err := tablesEqual(reference, other); err != nil {
			return fmt.Errorf("authorization table diverges between modes %s and %s: %w",
				modes[0], mode, err)
		}
	}
	return nil
}

func tablesEqual(a, b *Table) error {
	if len(a.rules) != len(b.rules) {
		return fmt.Errorf("rule count %d != %d", len(a.rules), len(b.rules))
	}
	for i := range a.rules {
		ra, rb := a.rules[i], b.rules[i]
		if ra.Method != rb.Method || ra.Pattern != rb.Pattern || !ra.Predicate.Equal(rb.Predicate) {
			return fmt.Errorf("rule %d differs: %s %s vs %s %s", i, ra.Method, ra.Pattern, rb.Method, rb.Pattern)
		}
	}
	return nil
}
