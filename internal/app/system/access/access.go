// Package access builds the Mongo filters that decide which folders and
// materials a requester may see.
//
// Visibility policy:
//   - students see content marked allStudents, plus specificBranchOrClass
//     content whose allowed branches AND allowed classes cover them,
//   - faculty (and anything else) see content marked both or facultyOnly.
//
// Whether a branch-only restriction (empty allowed_classes) should match every
// year, or no year, is deliberately a policy knob: MatchExact requires both
// lists to name the student, MatchLenient lets an empty list match anyone.
package access

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match policies for specificBranchOrClass content.
type MatchPolicy string

const (
	// MatchExact requires the student's branch to be listed in
	// allowed_branches AND their year in allowed_classes. An empty list
	// matches no one.
	MatchExact MatchPolicy = "exact"

	// MatchLenient treats an empty allowed_branches or allowed_classes list
	// as "no restriction on that axis": branch-only folders match all years
	// and class-only folders match all branches.
	MatchLenient MatchPolicy = "lenient"
)

// IsValidMatchPolicy checks if a value names a known policy.
func IsValidMatchPolicy(p string) bool {
	return MatchPolicy(p) == MatchExact || MatchPolicy(p) == MatchLenient
}

// Requester describes who is asking. Branch and Year are meaningful only for
// students.
type Requester struct {
	ID     primitive.ObjectID
	Role   string
	Branch string
	Year   string
}

// FolderFilter returns the filter selecting the folders owned by ownerID that
// the requester may see.
func FolderFilter(ownerID primitive.ObjectID, req Requester, policy MatchPolicy) bson.M {
	return withVisibility(bson.M{"created_by": ownerID}, req, policy)
}

// MaterialFilter returns the filter selecting the materials uploaded by
// ownerID that the requester may see.
func MaterialFilter(ownerID primitive.ObjectID, req Requester, policy MatchPolicy) bson.M {
	return withVisibility(bson.M{"uploaded_by": ownerID}, req, policy)
}

// withVisibility extends a base ownership filter with the role-dependent
// access clause.
func withVisibility(base bson.M, req Requester, policy MatchPolicy) bson.M {
	if req.Role == "student" {
		base["$or"] = bson.A{
			bson.M{"access": "allStudents"},
			specificClause(req, policy),
		}
		return base
	}

	// Faculty and any other role see faculty-facing content only.
	base["access"] = bson.M{"$in": bson.A{"both", "facultyOnly"}}
	return base
}

// specificClause builds the specificBranchOrClass arm of the student filter.
func specificClause(req Requester, policy MatchPolicy) bson.M {
	if policy == MatchLenient {
		// An absent or empty list places no restriction on that axis.
		emptyOrContains := func(field, value string) bson.M {
			return bson.M{"$or": bson.A{
				bson.M{field: value},
				bson.M{field: bson.M{"$exists": false}},
				bson.M{field: bson.M{"$size": 0}},
			}}
		}
		return bson.M{
			"access": "specificBranchOrClass",
			"$and": bson.A{
				emptyOrContains("allowed_branches", req.Branch),
				emptyOrContains("allowed_classes", req.Year),
			},
		}
	}

	// Exact: both branch and year must be listed. Matching a scalar against
	// an array field is Mongo's implicit $elemMatch.
	return bson.M{
		"access":           "specificBranchOrClass",
		"allowed_branches": req.Branch,
		"allowed_classes":  req.Year,
	}
}
