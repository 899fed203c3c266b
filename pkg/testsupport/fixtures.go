package testsupport

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

//go:embed testdata/seed.json
var defaultSeed []byte

// Seed is the fixture format used to populate a FakeAPI.
type Seed struct {
	Categories    []string       `json:"categories"`
	Departments   []string       `json:"departments"`
	Users         []User         `json:"users"`
	AcademicYears []AcademicYear `json:"academic_years"`
	Ideas         []Idea         `json:"ideas"`
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// DefaultSeed returns the seed bundled with this package.
func DefaultSeed(t testing.TB) Seed {
	t.Helper()

	seed, err := BundledSeed()
	if err != nil {
		t.Fatalf("failed to decode bundled seed: %v", err)
	}
	return seed
}

// BundledSeed decodes the bundled seed without a test handle.
func BundledSeed() (Seed, error) {
	var seed Seed
	err := json.Unmarshal(defaultSeed, &seed)
	return seed, err
}

// Load adds every record in seed. Ideas reference departments and
// categories by their position in the seed, starting at 1, and are
// rewritten to the ids the fake assigned.
func (f *FakeAPI) Load(seed Seed) {
	categoryIDs := make([]int, 0, len(seed.Categories))
	for _, name := range seed.Categories {
		categoryIDs = append(categoryIDs, f.AddCategory(name).ID)
	}
	departmentIDs := make([]int, 0, len(seed.Departments))
	for _, name := range seed.Departments {
		departmentIDs = append(departmentIDs, f.AddDepartment(name).ID)
	}
	for _, u := range seed.Users {
		u.DepartmentID = resolve(departmentIDs, u.DepartmentID)
		f.AddUser(u)
	}
	for _, y := range seed.AcademicYears {
		f.AddAcademicYear(y)
	}
	for _, idea := range seed.Ideas {
		idea.CategoryID = resolve(categoryIDs, idea.CategoryID)
		idea.DepartmentID = resolve(departmentIDs, idea.DepartmentID)
		f.AddIdea(idea)
	}
}

func resolve(ids []int, position int) int {
	if position < 1 || position > len(ids) {
		return 0
	}
	return ids[position-1]
}
