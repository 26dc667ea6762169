package authz

// Versioned API path prefixes. Every protected business endpoint exists under
// all three; authorization rules must treat the variants identically.
const (
	apiPrefix   = "/api"
	apiV3Prefix = "/v3"
	apiV2Prefix = "/v2"
)

// Logical endpoint paths, relative to the versioned API prefix.
const (
	SearchSkills      = "/search/skills"
	SearchCollections = "/search/collections"
	SearchJobCodes    = "/search/jobcodes"
	SearchKeywords    = "/search/keywords"

	SkillsList    = "/skills"
	SkillsCreate  = "/skills"
	SkillsFilter  = "/skills/filter"
	SkillDetail   = "/skills/{uuid}"
	SkillUpdate   = "/skills/{uuid}/update"
	SkillPublish  = "/skills/publish"
	SkillAuditLog = "/skills/{uuid}/log"

	CollectionsList        = "/collections"
	CollectionCreate       = "/collections"
	CollectionDetail       = "/collections/{uuid}"
	CollectionUpdate       = "/collections/{uuid}/update"
	CollectionSkills       = "/collections/{uuid}/skills"
	CollectionSkillsUpdate = "/collections/{uuid}/updateSkills"
	CollectionPublish      = "/collections/publish"
	CollectionRemove       = "/collections/{uuid}/remove"
	CollectionCSV          = "/collections/{uuid}/csv"
	CollectionXLSX         = "/collections/{uuid}/xlsx"
	CollectionAuditLog     = "/collections/{uuid}/log"

	TaskTextDetail   = "/results/text/{uuid}"
	TaskMediaDetail  = "/results/media/{uuid}"
	TaskSkillsDetail = "/results/skills/{uuid}"
	TaskBatchDetail  = "/results/batch/{uuid}"

	Workspace = "/workspace"
)

// Unversioned service endpoints.
const (
	LoginPath      = "/api/auth/login"
	WhitelabelPath = "/whitelabel/whitelabel.json"
	VersionPath    = "/version"
	HealthPath     = "/health"
)

// AllVersions expands a logical endpoint to its three path-version variants:
// /api/v3, /api/v2, and unversioned /api.
func AllVersions(endpoint string) []string {
	return []string{
		apiPrefix + apiV3Prefix + endpoint,
		apiPrefix + apiV2Prefix + endpoint,
		apiPrefix + endpoint,
	}
}
