package workflow

import "context"

// 外部协作方接口

// MetadataEdit 审批人在 approve_with_edit 时对条目元数据的原地修改
type MetadataEdit struct {
	Field string `json:"field"`
	Value string `json:"value"`
	// Replace 为 true 时先清除该字段已有的值
	Replace bool `json:"replace"`
}

// Submission 提交人工作区中已完成的提交
type Submission struct {
	WorkspaceItemID string
	ItemID          string
	CollectionID    string
	SubmitterID     string
	MultipleTitles  bool
	PublishedBefore bool
	MultipleFiles   bool
}

// ContentStore 内容存储(条目、元数据、工作区、归档)
type ContentStore interface {
	GetWorkspaceItem(ctx context.Context, workspaceItemID string) (*Submission, error)
	DeleteWorkspaceItem(ctx context.Context, workspaceItemID string) error
	CreateArchivedCopy(ctx context.Context, itemID string) (handle string, err error)
	ReturnToWorkspace(ctx context.Context, sub *Submission, reason string) (workspaceItemID string, err error)
	AppendProvenance(ctx context.Context, itemID string, text string) error
	UpdateMetadata(ctx context.Context, itemID string, edits []MetadataEdit) error
}

// GroupResolver 用户组成员资格检查(含嵌套组)
type GroupResolver interface {
	IsMemberOfGroup(ctx context.Context, person string, group string) (bool, error)
}

// GroupLister 可选能力: 列出组内全部成员
// 工作流服务用它判断组是否为空,为空时不发送任务池通知
type GroupLister interface {
	ListMembers(ctx context.Context, group string) ([]string, error)
}

// 通知模板
const (
	TemplateTaskPoolReady      = "task_pool_ready"
	TemplateTaskClaimed        = "task_claimed"
	TemplateSubmissionArchived = "submission_archived"
	TemplateSubmissionRejected = "submission_rejected"
	TemplateSubmissionAborted  = "workflow_aborted"
)

// NotificationItem 通知中携带的条目摘要
type NotificationItem struct {
	WorkflowItemID string `json:"workflow_item_id"`
	ItemID         string `json:"item_id"`
	CollectionID   string `json:"collection_id"`
	SubmitterID    string `json:"submitter_id"`
	Step           string `json:"step,omitempty"`
	Handle         string `json:"handle,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Notifier 通知发送(尽力而为,失败只记录日志)
type Notifier interface {
	NotifyGroup(ctx context.Context, group string, templateID string, item NotificationItem) error
	NotifyPerson(ctx context.Context, person string, templateID string, item NotificationItem) error
}
