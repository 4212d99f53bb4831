package models

import (
	"fmt"

	"studyplan-backend/internal/analytics"
)

// Preference pages stored in user_settings.
const (
	PreferencePageClasses     = "classes"
	PreferencePageAssignments = "assignments"
)

var classSortOptions = map[string]bool{
	"name_asc": true, "name_desc": true,
	"importance_high_low": true, "importance_low_high": true,
	"difficulty_high_low": true, "difficulty_low_high": true,
	"grade_high_low": true, "grade_low_high": true,
	"created_newest": true, "created_oldest": true,
}

var assignmentSortOptions = map[string]bool{
	"name_asc": true, "name_desc": true,
	"grade_high_low": true, "grade_low_high": true,
	"due_date_soonest": true, "due_date_latest": true,
	"created_newest": true, "created_oldest": true,
	"difficulty_high_low": true, "difficulty_low_high": true,
	"estimated_minutes_high_low": true, "estimated_minutes_low_high": true,
	"study_minutes_high_low": true, "study_minutes_low_high": true,
}

var (
	statusFilters     = map[string]bool{"all": true, "finished": true, "unfinished": true}
	dueStatusFilters  = map[string]bool{"all": true, "overdue": true, "not_due": true}
	completionFilters = map[string]bool{"all": true, "completed": true, "uncompleted": true}
	gradedFilters     = map[string]bool{"all": true, "graded": true, "ungraded": true}
	createdFilters    = map[string]bool{"all": true, "last_7_days": true, "last_30_days": true}
	tableLayouts      = map[string]bool{"single": true, "grouped": true}
)

type ImportanceFilter struct {
	High   bool `json:"high"`
	Medium bool `json:"medium"`
	Low    bool `json:"low"`
}

// ClassViewPreferences controls how the class list is sorted and filtered.
// An empty FilterClassTypes shows every type.
type ClassViewPreferences struct {
	SortBy           string           `json:"sort_by"`
	StatusFilter     string           `json:"status_filter"`
	FilterImportance ImportanceFilter `json:"filter_importance"`
	FilterClassTypes []string         `json:"filter_class_types"`
}

func DefaultClassViewPreferences() ClassViewPreferences {
	return ClassViewPreferences{
		SortBy:           "name_asc",
		StatusFilter:     "all",
		FilterImportance: ImportanceFilter{High: true, Medium: true, Low: true},
		FilterClassTypes: []string{},
	}
}

// Validate returns a field → message map, or nil when p is valid.
func (p ClassViewPreferences) Validate() map[string]string {
	fields := make(map[string]string)
	if !classSortOptions[p.SortBy] {
		fields["sort_by"] = fmt.Sprintf("unsupported sort option %q", p.SortBy)
	}
	if !statusFilters[p.StatusFilter] {
		fields["status_filter"] = "must be all, finished or unfinished"
	}
	for _, t := range p.FilterClassTypes {
		if !analytics.KnownClassType(t) {
			fields["filter_class_types"] = fmt.Sprintf("unknown class type %q", t)
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// AssignmentViewPreferences controls the assignment table. An empty
// FilterAssignmentTypes shows every type.
type AssignmentViewPreferences struct {
	DueStatusFilter       string   `json:"due_status_filter"`
	CompletionFilter      string   `json:"completion_filter"`
	GradedFilter          string   `json:"graded_filter"`
	CreatedFilter         string   `json:"created_filter"`
	FilterAssignmentTypes []string `json:"filter_assignment_types"`
	SortBy                string   `json:"sort_by"`
	TableLayout           string   `json:"table_layout"`
}

func DefaultAssignmentViewPreferences() AssignmentViewPreferences {
	return AssignmentViewPreferences{
		DueStatusFilter:       "all",
		CompletionFilter:      "all",
		GradedFilter:          "all",
		CreatedFilter:         "all",
		FilterAssignmentTypes: []string{},
		SortBy:                "due_date_soonest",
		TableLayout:           "single",
	}
}

func (p AssignmentViewPreferences) Validate() map[string]string {
	fields := make(map[string]string)
	if !dueStatusFilters[p.DueStatusFilter] {
		fields["due_status_filter"] = "must be all, overdue or not_due"
	}
	if !completionFilters[p.CompletionFilter] {
		fields["completion_filter"] = "must be all, completed or uncompleted"
	}
	if !gradedFilters[p.GradedFilter] {
		fields["graded_filter"] = "must be all, graded or ungraded"
	}
	if !createdFilters[p.CreatedFilter] {
		fields["created_filter"] = "must be all, last_7_days or last_30_days"
	}
	if !assignmentSortOptions[p.SortBy] {
		fields["sort_by"] = fmt.Sprintf("unsupported sort option %q", p.SortBy)
	}
	if !tableLayouts[p.TableLayout] {
		fields["table_layout"] = "must be single or grouped"
	}
	for _, t := range p.FilterAssignmentTypes {
		if !analytics.KnownAssignmentType(t) {
			fields["filter_assignment_types"] = fmt.Sprintf("unknown assignment type %q", t)
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
