package availability

import (
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// WorkingWindow returns the branch's opening interval on day. day only contributes its
// calendar date; the window is built in the branch's location.
// A weekday without hours, or with an empty entry, yields *model.BranchClosedError.
func WorkingWindow(branch model.Branch, day time.Time, loc *time.Location) (Interval, error) {
	y, m, d := day.Date()
	local := time.Date(y, m, d, 0, 0, 0, 0, loc)

	h, ok := branch.HoursFor(local.Weekday())
	if !ok || h.CloseMinute <= h.OpenMinute {
		return Interval{}, &model.BranchClosedError{BranchID: branch.ID, BranchName: branch.Name, Date: local}
	}
	return Interval{Start: model.At(local, h.OpenMinute), End: model.At(local, h.CloseMinute)}, nil
}
