package catalog

var defaultGlobal = []string{
	"users",
	"practices",
	"practice_types",
	"specialty_groups",
	"role_colors",
	"role_permissions",
}

var defaultTenant = []string{
	// Team
	"team_members",
	"teams",
	"team_assignments",
	"departments",
	// Documents and knowledge
	"documents",
	"document_folders",
	"document_permissions",
	"knowledge_base",
	"knowledge_confirmations",
	// Tasks and goals
	"todos",
	"todo_attachments",
	"goals",
	"goal_assignments",
	"goal_attachments",
	"user_goal_order",
	// Responsibilities and workflows
	"responsibilities",
	"responsibility_attachments",
	"workflows",
	"workflow_steps",
	// Calendar
	"calendar_events",
	"external_calendar_subscriptions",
	"holidays",
	"holiday_requests",
	"holiday_blocked_periods",
	// HR and hiring
	"job_postings",
	"candidates",
	"applications",
	"interviews",
	"interview_templates",
	"hiring_pipeline_stages",
	"questionnaires",
	"questionnaire_responses",
	"contracts",
	"contract_files",
	"sick_leaves",
	// Skills
	"practice_skills",
	"skill_categories",
	"skill_level_definitions",
	"team_member_skills",
	"skill_assessment_history",
	// Analytics
	"analytics_parameters",
	"parameter_values",
	"global_parameter_groups",
	// Financial
	"bank_transactions",
	"bank_transaction_categories",
	"kv_abrechnung",
	"billing_history",
	// Equipment and rooms
	"arbeitsmittel",
	"team_member_arbeitsmittel",
	"arbeitsplaetze",
	"arbeitsplatzanweisungen",
	"rooms",
	// Organization
	"org_chart_positions",
	"orga_categories",
	"staffing_plans",
	"staffing_plan",
	// Forms
	"custom_forms",
	"form_fields",
	"form_submissions",
	"recruiting_form_fields",
	// Reviews
	"google_ratings",
	"jameda_ratings",
	"sanego_ratings",
	"review_platform_config",
	"review_imports",
	// Analyses and journals
	"igel_analyses",
	"roi_analyses",
	"competitor_analyses",
	"ai_analysis_history",
	"practice_journals",
	"journal_entries",
	"journal_action_items",
	"journal_preferences",
	// Contacts
	"contacts",
	"notifications",
	// Strategy
	"strategy_journey_progress",
	"wunschpatient_profiles",
	"leitbild",
	// Settings
	"practice_settings",
	"sidebar_permissions",
	"user_sidebar_preferences",
}

// Default returns the production catalog.
func Default() *Catalog {
	return MustNew(defaultGlobal, defaultTenant, DefaultTenantColumn)
}
