package controller

import (
	"errors"
	"strconv"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/repository"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/service"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type MockTestController struct {
	Catalog  *service.CatalogService
	Attempts *repository.AttemptRepository
}

func NewMockTestController(catalog *service.CatalogService, attempts *repository.AttemptRepository) *MockTestController {
	return &MockTestController{Catalog: catalog, Attempts: attempts}
}

// @Summary List mock tests
// @Description Anonymous callers and students see published tests only; teachers and admins see everything.
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /mock-tests [get]
func (c *MockTestController) ListTests(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	publishedOnly := user == nil || user.Role == model.Student
	tests, total, err := c.Catalog.ListTests(page, limit, publishedOnly)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": tests, "total": total})
}

// @Summary Get a mock test
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "mock test id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /mock-tests/{id} [get]
func (c *MockTestController) GetTest(ctx *gin.Context) {
	test, qs, err := c.Catalog.GetTestWithQuestions(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrMockTestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	// unpublished tests exist only for their authors
	user := util.GetUserFromContext(ctx)
	if !test.IsPublished && (user == nil || user.Role == model.Student) {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, gin.H{"test": test, "questions": qs})
}

// @Summary Create a mock test
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.MockTestReq true "test definition"
// @Success 201 {object} util.Response
// @Router /teacher/mock-tests [post]
func (c *MockTestController) CreateTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.MockTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Catalog.CreateTest(user.UserID, req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, test)
}

// @Summary Update a mock test
// @Description Edits the test definition. In-flight attempts keep the duration they started with.
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "mock test id"
// @Param body body service.MockTestReq true "test definition"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /teacher/mock-tests/{id} [put]
func (c *MockTestController) UpdateTest(ctx *gin.Context) {
	var req service.MockTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Catalog.UpdateTest(ctx.Param("id"), req)
	if err != nil {
		if errors.Is(err, util.ErrMockTestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, test)
}

// @Summary Delete a mock test
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "mock test id"
// @Success 200 {object} util.Response
// @Router /teacher/mock-tests/{id} [delete]
func (c *MockTestController) DeleteTest(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Catalog.DeleteTest(id); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary List attempts for a test
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "mock test id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /teacher/mock-tests/{id}/attempts [get]
func (c *MockTestController) ListAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	attempts, total, err := c.Attempts.ListByTest(ctx.Param("id"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": attempts, "total": total})
}

// @Summary Reset a student attempt
// @Description Deletes the attempt record so the student can take the test again. The lifecycle itself never deletes; this is the administrative escape hatch.
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /teacher/attempts/{id}/reset [post]
func (c *MockTestController) ResetAttempt(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Attempts.Delete(id); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"reset": id})
}
