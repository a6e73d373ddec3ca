package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/mautops/integration-monitor/internal/utils"
)

// IntegrationController 集成控制器
type IntegrationController struct {
	integrationService service.IntegrationService
}

// NewIntegrationController 创建集成控制器
func NewIntegrationController(integrationService service.IntegrationService) *IntegrationController {
	return &IntegrationController{
		integrationService: integrationService,
	}
}

// SetStatusRequest 设置状态请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create 创建集成
// @Summary      创建集成
// @Tags         集成管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateIntegrationRequest true "集成信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Router       /integrations [post]
func (c *IntegrationController) Create(ctx *gin.Context) {
	var req service.CreateIntegrationRequest
	if !bindJSON(ctx, &req) {
		return
	}

	integration, err := c.integrationService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, "Integration created successfully", integration)
}

// List 查询集成列表
// @Summary      查询集成列表
// @Description  支持状态、类型、标签、关键字过滤与排序
// @Tags         集成管理
// @Produce      json
// @Param        status query string false "状态"
// @Param        type query string false "类型"
// @Param        tags query string false "标签（逗号分隔，命中任一即可）"
// @Param        search query string false "关键字"
// @Param        page query int false "页码" default(1)
// @Param        limit query int false "每页数量" default(10)
// @Param        sortBy query string false "排序字段" default(updatedAt)
// @Param        sortOrder query string false "排序方向" Enums(asc, desc)
// @Success      200  {object}  Response
// @Router       /integrations [get]
func (c *IntegrationController) List(ctx *gin.Context) {
	filter := &service.IntegrationListFilter{
		Status:    ctx.Query("status"),
		Type:      ctx.Query("type"),
		Tags:      utils.SplitCSV(ctx.Query("tags")),
		Search:    ctx.Query("search"),
		Page:      queryInt(ctx, "page"),
		Limit:     queryInt(ctx, "limit"),
		SortBy:    ctx.Query("sortBy"),
		SortOrder: ctx.Query("sortOrder"),
	}

	result, err := c.integrationService.List(ctx.Request.Context(), filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, "Integrations retrieved successfully", result.Data, result.Pagination)
}

// Get 获取集成
// @Summary      获取集成详情
// @Tags         集成管理
// @Produce      json
// @Param        id path string true "集成 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /integrations/{id} [get]
func (c *IntegrationController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	integration, err := c.integrationService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Integration retrieved successfully", integration)
}

// Update 更新集成
// @Summary      更新集成
// @Description  只更新请求中提供的字段
// @Tags         集成管理
// @Accept       json
// @Produce      json
// @Param        id path string true "集成 ID"
// @Param        request body service.UpdateIntegrationRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Failure      409  {object}  Response
// @Router       /integrations/{id} [put]
func (c *IntegrationController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateIntegrationRequest
	if !bindJSON(ctx, &req) {
		return
	}

	integration, err := c.integrationService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Integration updated successfully", integration)
}

// Delete 删除集成
// @Summary      删除集成
// @Description  cascade=true 时同时删除任务、执行记录与日志
// @Tags         集成管理
// @Produce      json
// @Param        id path string true "集成 ID"
// @Param        cascade query bool false "级联删除"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /integrations/{id} [delete]
func (c *IntegrationController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.integrationService.Delete(ctx.Request.Context(), id, queryBool(ctx, "cascade"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Integration deleted successfully", result)
}

// SetStatus 设置集成状态
// @Summary      设置集成状态
// @Tags         集成管理
// @Accept       json
// @Produce      json
// @Param        id path string true "集成 ID"
// @Param        request body SetStatusRequest true "状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /integrations/{id}/status [patch]
func (c *IntegrationController) SetStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req SetStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	integration, err := c.integrationService.SetStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Integration status updated successfully", integration)
}

// Stats 集成统计
// @Summary      集成统计
// @Tags         集成管理
// @Produce      json
// @Success      200  {object}  Response
// @Router       /integrations/stats/overview [get]
func (c *IntegrationController) Stats(ctx *gin.Context) {
	stats, err := c.integrationService.Stats(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Integration stats retrieved successfully", stats)
}
