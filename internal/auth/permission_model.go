package auth

// GetGroupModel 获取 OpenFGA 用户组关系模型定义
// 组成员可以是用户,也可以是另一个组的全部成员(嵌套组)
func GetGroupModel() string {
	return `model
  schema 1.1

type user

type group
  relations
    define member: [user, group#member]`
}
