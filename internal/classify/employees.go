package classify

import (
	"strconv"
	"time"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

// party is an employee resolved for one side of a call. Employees assigned
// through an extension range have no id.
type party struct {
	employee models.Employee
	cause    models.AssignmentCause
}

// resolveExtension finds who owned ext at ts. With localOnly set only
// employees of loc answer; otherwise employees of loc are preferred over
// those of other locations. When nobody owns the extension an extension
// range of loc covering it assigns the call, unless the extension has any
// employee history at all.
func (c *Classifier) resolveExtension(loc models.Location, ext string, ts time.Time, localOnly bool) (party, bool) {
	if ext == "" {
		return party{}, false
	}
	idx := c.ref.Employees()

	if e, ok := idx.Find(ext, ts, func(e models.Employee) bool { return e.LocationID == loc.ID }); ok {
		return party{employee: e, cause: models.AssignmentExtension}, true
	}
	if !localOnly {
		if e, ok := idx.Find(ext, ts, nil); ok {
			return party{employee: e, cause: models.AssignmentExtension}, true
		}
	}
	if idx.HasHistory(ext) {
		return party{}, false
	}

	r, ok := c.rangeFor(loc.ID, ext, ts)
	if !ok {
		return party{}, false
	}
	return party{
		employee: models.Employee{
			Extension:     ext,
			LocationID:    r.LocationID,
			SubdivisionID: r.SubdivisionID,
			ValidFrom:     r.ValidFrom,
		},
		cause: models.AssignmentRanges,
	}, true
}

// resolveOrigin attributes the calling side, trying the authorization code
// before the extension.
func (c *Classifier) resolveOrigin(loc models.Location, rec *models.CallRecord, ext string, localOnly bool) (party, bool) {
	ignoredAuth := false
	if rec.AuthCode != "" {
		if e, ok := c.ref.Employees().Find(refdata.AuthKey(rec.AuthCode), rec.StartTime, nil); ok {
			return party{employee: e, cause: models.AssignmentAuthCode}, true
		}
		ignoredAuth = true
	}

	p, ok := c.resolveExtension(loc, ext, rec.StartTime, localOnly)
	if ok && ignoredAuth {
		p.cause = models.AssignmentIgnoredAuthCode
	}
	return p, ok
}

// attribute records the employee owning "our" side of the call.
func attribute(rec *models.CallRecord, p party, found bool) {
	if !found {
		rec.EmployeeID = 0
		rec.AssignmentCause = models.AssignmentNotAssigned
		return
	}
	rec.EmployeeID = p.employee.ID
	rec.AssignmentCause = p.cause
	if rec.TransferCause == models.TransferConference {
		rec.AssignmentCause = models.AssignmentConference
	}
}

func parseExtension(ext string) (int64, bool) {
	if ext == "" || ext[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseInt(ext, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
