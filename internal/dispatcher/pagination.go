package dispatcher

import (
	"fmt"
	"math"
	"strconv"

	"github.com/vitaliisemenov/sql-gateway/internal/apierrors"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// resolvePaging extracts page/size from the request's query string,
// defaulting and validating them against p, and returns the limit/offset
// to inject into the working parameter map.
func resolvePaging(p registry.Pagination, raw RawParameters) (page, size, limit, offset int, err error) {
	page = 0
	if v := raw.QueryValue.Get("page"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, 0, 0, 0, apierrors.NewBadRequest(fmt.Sprintf("page must be an integer, got %q", v))
		}
		page = n
	}
	if page < 0 {
		return 0, 0, 0, 0, apierrors.NewBadRequest("page must be >= 0")
	}

	size = p.DefaultSize
	if v := raw.QueryValue.Get("size"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, 0, 0, 0, apierrors.NewBadRequest(fmt.Sprintf("size must be an integer, got %q", v))
		}
		size = n
	}
	if size <= 0 || size > p.MaxSize {
		return 0, 0, 0, 0, apierrors.NewBadRequest(fmt.Sprintf("size must be between 1 and %d", p.MaxSize))
	}

	return page, size, size, page * size, nil
}

// paginationMeta derives the full PaginationMeta envelope using
// totalPages = ceil(totalElements/size), first = (page==0),
// last = (page+1 >= totalPages). Without a count query, totalElements is
// dataLen, totalPages is 1 and last is true.
func paginationMeta(page, size int, totalElements int64, dataLen int, hasCountQuery bool) PaginationMeta {
	if !hasCountQuery {
		totalElements = int64(dataLen)
		return PaginationMeta{Page: page, Size: size, TotalElements: totalElements, TotalPages: 1, First: page == 0, Last: true}
	}

	totalPages := int(math.Ceil(float64(totalElements) / float64(size)))
	if totalPages < 1 {
		totalPages = 1
	}
	return PaginationMeta{
		Page:          page,
		Size:          size,
		TotalElements: totalElements,
		TotalPages:    totalPages,
		First:         page == 0,
		Last:          page+1 >= totalPages,
	}
}
