package rbclient

import (
	"regexp"
	"strings"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
)

// Role names the logical slot a pixel fills inside a Rockerbox client pair.
type Role int

const (
	// RoleAdvID is the getRockerBoxAdvID pixel carrying the embedded rb_adv_id.
	RoleAdvID Role = iota
	// RoleUID is the getRockerBoxUID pixel reading the rbuid cookie.
	RoleUID
)

func (r Role) String() string {
	switch r {
	case RoleAdvID:
		return "rbClientAdvIdSpx"
	case RoleUID:
		return "rbClientUidSpx"
	}
	return "unknown"
}

// A Rockerbox client's getRockerBoxAdvID(advId) pixel query looks like:
// let getRockerBoxAdvID = () => { let rb_adv_id = null; return "rb_adv_id=test_id"; }; getRockerBoxAdvID();
const advIDKeyword = "getRockerBoxAdvID()"

// A Rockerbox client's getRockerBoxUID(uid) pixel query looks like:
// let getRockerBoxUID = () => { let rb_uid = null; try{ rb_uid = `rb_uid=${document.cookie.split("rbuid=")[1].split(";")[0].trim()}`; }catch(e){ rb_uid = null }; return rb_uid }; getRockerBoxUID();
const uidKeyword = "getRockerBoxUID()"

var (
	// Rockerbox advertiser ids may contain alphanumerics, underscore and hyphen.
	// The character class is a contract with whatever writes rb_adv_id values;
	// do not widen it.
	rbAdvIDExtractor = regexp.MustCompile(`rb_adv_id=([A-Za-z0-9_-]+)`)
	rbAdvIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IsRbClientQuery reports whether a pixel query belongs to either half of a
// Rockerbox client pair.
func IsRbClientQuery(query string) bool {
	return IsAdvIDQuery(query) || IsUIDQuery(query)
}

func IsAdvIDQuery(query string) bool {
	return strings.Contains(query, advIDKeyword)
}

func IsUIDQuery(query string) bool {
	return strings.Contains(query, uidKeyword)
}

// FindRbAdvID extracts the Rockerbox advertiser id embedded in a
// getRockerBoxAdvID pixel query. The captured run stops at the first character
// outside [A-Za-z0-9_-], which tolerates the quoting around the literal.
func FindRbAdvID(query string) (string, bool) {
	m := rbAdvIDExtractor.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsValidRbAdvID reports whether s is a well-formed Rockerbox advertiser id.
func IsValidRbAdvID(s string) bool {
	return rbAdvIDPattern.MatchString(s)
}

// NewAdvIDPixel builds the getRockerBoxAdvID pixel for an advertiser. The
// administrative columns are fixed by the store on insert.
func NewAdvIDPixel(advertiserID int, rbAdvID string) models.Pixel {
	return models.Pixel{
		AdvertiserID: advertiserID,
		Query:        AdvIDQuery(rbAdvID),
	}
}

// NewUIDPixel builds the getRockerBoxUID pixel. Its query is identical for
// every advertiser.
func NewUIDPixel(advertiserID int) models.Pixel {
	return models.Pixel{
		AdvertiserID: advertiserID,
		Query:        UIDQuery(),
	}
}

// AdvIDQuery renders the getRockerBoxAdvID pixel query embedding rbAdvID.
func AdvIDQuery(rbAdvID string) string {
	return `let getRockerBoxAdvID = () => { let rb_adv_id = null; return "rb_adv_id=` + rbAdvID + `"; }; getRockerBoxAdvID();`
}

const (
	uidQueryPart1 = "let getRockerBoxUID = () => { let rb_uid = null; try{ rb_uid = `rb_uid=$"
	uidQueryPart2 = `{document.cookie.split("rbuid=")[1].split(";")[0].trim()}` + "`" + `; }catch(e){ rb_uid = null }; return rb_uid }; getRockerBoxUID();`
)

// UIDQuery renders the getRockerBoxUID pixel query. It reads the rbuid cookie
// on the client and yields null on any parse error.
func UIDQuery() string {
	return uidQueryPart1 + uidQueryPart2
}
