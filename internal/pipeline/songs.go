package pipeline

import (
	"regexp"
	"strconv"

	"mwb/internal"
	"mwb/internal/util"
)

var songRe = regexp.MustCompile(`(?i)\b(?:C[âa]ntico|Song)s?\s*:?\s*(?:n\.?[ºo°]\s*)?(\d{1,3})`)

// FindSongs returns the first three distinct song numbers in text as opening,
// middle and closing.
func FindSongs(text string) internal.Songs {
	var nums []int
	seen := map[int]struct{}{}
	for _, m := range songRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		nums = append(nums, n)
		if len(nums) == 3 {
			break
		}
	}

	var s internal.Songs
	if len(nums) > 0 {
		s.Opening = util.IntPtr(nums[0])
	}
	if len(nums) > 1 {
		s.Middle = util.IntPtr(nums[1])
	}
	if len(nums) > 2 {
		s.Closing = util.IntPtr(nums[2])
	}
	return s
}
