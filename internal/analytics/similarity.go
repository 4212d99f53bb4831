package analytics

import (
	"math"

	"github.com/google/uuid"
)

// Class types known to the similarity scale.
const (
	ClassEngineering   = "engineering"
	ClassMath          = "math"
	ClassTechnology    = "technology"
	ClassScience       = "science"
	ClassFinance       = "finance"
	ClassOther         = "other"
	ClassSocialScience = "social_science"
	ClassLanguage      = "language"
	ClassArt           = "art"
)

// Assignment types known to the estimator.
const (
	AssignmentHomework     = "homework"
	AssignmentQuiz         = "quiz"
	AssignmentProject      = "project"
	AssignmentWriting      = "writing"
	AssignmentTest         = "test"
	AssignmentExam         = "exam"
	AssignmentLabReport    = "lab_report"
	AssignmentPresentation = "presentation"
	AssignmentReading      = "reading"
	AssignmentOther        = "other"
)

// classTypeCoordinates places each class type on a 1-D scale running from
// technical (0) to artistic (100).
var classTypeCoordinates = map[string]float64{
	ClassEngineering:   0,
	ClassMath:          10,
	ClassTechnology:    15,
	ClassScience:       25,
	ClassFinance:       30,
	ClassOther:         50,
	ClassSocialScience: 65,
	ClassLanguage:      70,
	ClassArt:           100,
}

const unknownClassCoordinate = 50

type assignmentGroup string

const (
	groupAssessment assignmentGroup = "assessment"
	groupPractice   assignmentGroup = "practice"
	groupCreative   assignmentGroup = "creative"
	groupLanguage   assignmentGroup = "language"
)

var assignmentGroups = map[string]assignmentGroup{
	AssignmentQuiz:         groupAssessment,
	AssignmentTest:         groupAssessment,
	AssignmentExam:         groupAssessment,
	AssignmentHomework:     groupPractice,
	AssignmentLabReport:    groupPractice,
	AssignmentProject:      groupCreative,
	AssignmentPresentation: groupCreative,
	AssignmentReading:      groupLanguage,
	AssignmentWriting:      groupLanguage,
}

type groupPair struct{ a, b assignmentGroup }

// groupSimilarity is stored one way round; lookups try both orders.
var groupSimilarity = map[groupPair]float64{
	{groupAssessment, groupAssessment}: 0.85,
	{groupPractice, groupPractice}:     0.75,
	{groupCreative, groupCreative}:     0.8,
	{groupLanguage, groupLanguage}:     0.85,
	{groupAssessment, groupPractice}:   0.6,
	{groupAssessment, groupCreative}:   0.35,
	{groupAssessment, groupLanguage}:   0.2,
	{groupPractice, groupCreative}:     0.5,
	{groupPractice, groupLanguage}:     0.3,
	{groupCreative, groupLanguage}:     0.4,
}

// OtherTypeSimilarity is the score given whenever either side is the
// catch-all "other" assignment type.
const OtherTypeSimilarity = 0.3

// Composite similarity weights.
const (
	classTypeWeight      = 0.5
	assignmentTypeWeight = 0.3
	sameClassWeight      = 0.2
	sameClassBonus       = 1.0
	otherClassBonus      = 0.6
)

// Descriptor identifies an assignment for similarity purposes.
type Descriptor struct {
	ClassType      string
	AssignmentType string
	ClassID        uuid.UUID
}

// KnownClassType reports whether t has a fixed coordinate on the class scale.
func KnownClassType(t string) bool {
	_, ok := classTypeCoordinates[t]
	return ok
}

// KnownAssignmentType reports whether t has a base estimate.
func KnownAssignmentType(t string) bool {
	_, ok := baseMinutesByType[t]
	return ok
}

// ClassTypeSimilarity returns 1 − |coord(a) − coord(b)| / 100, clamped to
// [0, 1]. Unknown class types sit at the midpoint of the scale.
func ClassTypeSimilarity(a, b string) float64 {
	ca, ok := classTypeCoordinates[a]
	if !ok {
		ca = unknownClassCoordinate
	}
	cb, ok := classTypeCoordinates[b]
	if !ok {
		cb = unknownClassCoordinate
	}
	return round(clamp01(1-math.Abs(ca-cb)/100), 3)
}

// AssignmentTypeSimilarity scores two assignment types:
// identical → 1, either "other" → OtherTypeSimilarity, otherwise the
// group-pair table. Types outside every group score 0.
func AssignmentTypeSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == AssignmentOther || b == AssignmentOther {
		return OtherTypeSimilarity
	}

	ga, okA := assignmentGroups[a]
	gb, okB := assignmentGroups[b]
	if !okA || !okB {
		return 0.0
	}

	if v, ok := groupSimilarity[groupPair{ga, gb}]; ok {
		return v
	}
	if v, ok := groupSimilarity[groupPair{gb, ga}]; ok {
		return v
	}
	return 0.0
}

// CompositeSimilarity blends the class-type, assignment-type and same-class
// signals:
//
//	0.5·classSim + 0.3·typeSim + 0.2·(1.0 if same class else 0.6)
//
// rounded to 3 decimals.
func CompositeSimilarity(target, past Descriptor) float64 {
	classSim := ClassTypeSimilarity(target.ClassType, past.ClassType)
	typeSim := AssignmentTypeSimilarity(target.AssignmentType, past.AssignmentType)

	bonus := otherClassBonus
	if target.ClassID == past.ClassID {
		bonus = sameClassBonus
	}

	return round(classTypeWeight*classSim+assignmentTypeWeight*typeSim+sameClassWeight*bonus, 3)
}
