package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// 用户组关系模型中使用的类型与关系
const (
	userType       = "user"
	groupType      = "group"
	memberRelation = "member"
)

// OpenFGAClient OpenFGA 客户端,以 group#member 关系解析用户组成员资格
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAClient 创建 OpenFGA 客户端
func NewOpenFGAClient(apiURL string, storeID string, modelID string) (*OpenFGAClient, error) {
	configuration := client.ClientConfiguration{
		ApiUrl:               apiURL,
		StoreId:              storeID,
		AuthorizationModelId: modelID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

// NewOpenFGAClientWithRetry 带重试的 OpenFGA 客户端创建
func NewOpenFGAClientWithRetry(apiURL string, storeID string, modelID string, maxRetries int, retryInterval time.Duration) (*OpenFGAClient, error) {
	var fgaClient *OpenFGAClient
	var err error

	for i := 0; i < maxRetries; i++ {
		fgaClient, err = NewOpenFGAClient(apiURL, storeID, modelID)
		if err == nil {
			if fgaClient.CheckHealth(context.Background()) {
				return fgaClient, nil
			}
			err = fmt.Errorf("OpenFGA at %s is not reachable", apiURL)
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to create OpenFGA client after %d retries: %w", maxRetries, err)
}

// IsMemberOfGroup 检查 person 是否为 group 的成员(含嵌套组,由 OpenFGA 展开)
func (c *OpenFGAClient) IsMemberOfGroup(ctx context.Context, person string, group string) (bool, error) {
	body := client.ClientCheckRequest{
		User:     userObject(person),
		Relation: memberRelation,
		Object:   groupObject(group),
	}

	response, err := c.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}

	return response.GetAllowed(), nil
}

// AddMember 添加直接成员
func (c *OpenFGAClient) AddMember(ctx context.Context, group string, person string) error {
	return c.write(ctx, userObject(person), group, true)
}

// RemoveMember 移除直接成员
func (c *OpenFGAClient) RemoveMember(ctx context.Context, group string, person string) error {
	return c.write(ctx, userObject(person), group, false)
}

// AddChild 将 child 组的全部成员纳入 parent 组
func (c *OpenFGAClient) AddChild(ctx context.Context, parent string, child string) error {
	return c.write(ctx, groupObject(child)+"#"+memberRelation, parent, true)
}

func (c *OpenFGAClient) write(ctx context.Context, user string, group string, add bool) error {
	var body client.ClientWriteRequest
	if add {
		body.Writes = []client.ClientTupleKey{
			{User: user, Relation: memberRelation, Object: groupObject(group)},
		}
	} else {
		body.Deletes = []client.ClientTupleKeyWithoutCondition{
			{User: user, Relation: memberRelation, Object: groupObject(group)},
		}
	}

	if _, err := c.client.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to write group relation: %w", err)
	}
	return nil
}

// CheckHealth 检查 OpenFGA 连接健康状态
func (c *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.Read(ctx).Execute()
	return err == nil
}

func userObject(person string) string {
	return fmt.Sprintf("%s:%s", userType, person)
}

func groupObject(group string) string {
	return fmt.Sprintf("%s:%s", groupType, group)
}
