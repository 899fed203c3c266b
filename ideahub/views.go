package ideahub

import (
	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/listview"
	"github.com/goliatone/go-query-cache/query"
)

// CategoryListSchema is the URL layout of the categories screen.
var CategoryListSchema = listview.Schema{
	PageParam:       "page",
	PageSizeParam:   "page_size",
	SearchParam:     "search",
	DefaultPageSize: 10,
}

// Idea list URL parameters.
const (
	ParamCategoryID = "categoryId"
	ParamStartDate  = "startDate"
	ParamEndDate    = "endDate"
	ParamTab        = "tab"
)

// IdeaListSchema is the URL layout of a department's idea list.
var IdeaListSchema = listview.Schema{
	PageParam:       "page",
	PageSizeParam:   "perPage",
	Filters:         []string{ParamCategoryID, ParamStartDate, ParamEndDate, ParamTab},
	Defaults:        map[string]string{ParamTab: TabLatest},
	DefaultPageSize: 10,
}

// CategoryListView mounts the categories screen.
func (s *Service) CategoryListView(nav listview.Navigator) *listview.Controller[apiclient.Page[Category]] {
	return listview.New(s.cache, nav, CategoryListSchema, func(st listview.FilterState) query.Options[apiclient.Page[Category]] {
		return s.CategoryListQuery(CategoryListParams{
			Page:    st.Page,
			PerPage: st.PageSize,
			Search:  st.Search,
		})
	}, s.viewCfg)
}

// IdeaListView mounts the idea list of one department as seen by viewer.
func (s *Service) IdeaListView(nav listview.Navigator, departmentID ID, viewer User) *listview.Controller[apiclient.Page[Idea]] {
	return listview.New(s.cache, nav, IdeaListSchema, func(st listview.FilterState) query.Options[apiclient.Page[Idea]] {
		return s.IdeaListQuery(IdeaListParams{
			DepartmentID: departmentID,
			CategoryID:   ID(st.Filter(ParamCategoryID)),
			StartDate:    st.Filter(ParamStartDate),
			EndDate:      st.Filter(ParamEndDate),
			Tab:          st.Filter(ParamTab),
			Page:         st.Page,
			PerPage:      st.PageSize,
			Role:         viewer.Role,
		})
	}, s.viewCfg)
}
