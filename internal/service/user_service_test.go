package service

import (
	"testing"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(repo *fakeUserRepo) UserService {
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(repo, jwtManager)
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	profile := model.Profile{Name: "王护士", Age: 29, Gender: "女"}
	user, err := svc.Register("nurse01", "secret123", profile)
	require.NoError(t, err)
	assert.Equal(t, "nurse01", user.Username)
	// 密码以哈希形式存储
	assert.NotEqual(t, "secret123", user.Password)

	logged, accessToken, refreshToken, err := svc.Login("nurse01", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo())
	profile := model.Profile{Name: "王护士", Age: 29, Gender: "女"}

	_, err := svc.Register("nurse01", "secret123", profile)
	require.NoError(t, err)
	_, err = svc.Register("nurse01", "another-pass", profile)
	assert.Error(t, err)
}

func TestRegisterProfileValidation(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo())

	cases := []struct {
		name    string
		profile model.Profile
	}{
		{"缺姓名", model.Profile{Age: 29, Gender: "女"}},
		{"年龄为零", model.Profile{Name: "王护士", Gender: "女"}},
		{"年龄越界", model.Profile{Name: "王护士", Age: 130, Gender: "女"}},
		{"缺性别", model.Profile{Name: "王护士", Age: 29}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Register("nurse-"+c.name, "secret123", c.profile)
			assert.Error(t, err)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo())
	profile := model.Profile{Name: "王护士", Age: 29, Gender: "女"}
	_, err := svc.Register("nurse01", "secret123", profile)
	require.NoError(t, err)

	_, _, _, err = svc.Login("nurse01", "wrong-pass")
	assert.Error(t, err)
	_, _, _, err = svc.Login("no-such-user", "secret123")
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)
	profile := model.Profile{Name: "王护士", Age: 29, Gender: "女"}
	_, err := svc.Register("nurse01", "secret123", profile)
	require.NoError(t, err)

	_, _, refreshToken, err := svc.Login("nurse01", "secret123")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	_, _, err = svc.RefreshToken("not-a-token")
	assert.Error(t, err)
}

func TestGetAndUpdateProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)
	profile := model.Profile{Name: "王护士", Age: 29, Gender: "女"}
	user, err := svc.Register("nurse01", "secret123", profile)
	require.NoError(t, err)

	got, err := svc.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "王护士", got.Name)

	updated := model.Profile{Name: "王护士", Age: 30, Gender: "女", Department: "急诊"}
	require.NoError(t, svc.UpdateProfile(user.ID, updated))

	err = svc.UpdateProfile(user.ID, model.Profile{})
	assert.Error(t, err)
}
