package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysocial/shop-api/internal/model"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func paymentRow(id, status string, cycle model.BillingCycle, amount int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "shop_id", "billing_cycle", "amount_ghs", "method", "reference", "status",
		"decided_by_user_id", "decided_at", "note", "created_at"}).
		AddRow(id, "shop-1", string(cycle), amount, "MOMO", "ref-123", status, nil, nil, nil, testNow.Add(-time.Hour))
}

func TestApproveCommitsAllWrites(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRequestRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payment_requests WHERE id=\? FOR UPDATE`).
		WithArgs("pr-1").
		WillReturnRows(paymentRow("pr-1", "PENDING", model.BillingAnnual, 590))
	mock.ExpectExec(`UPDATE payment_requests SET status=\?, decided_at=\?, decided_by_user_id=\? WHERE id=\?`).
		WithArgs("APPROVED", testNow, "admin-1", "pr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(sqlmock.AnyArg(), "shop-1", "ACTIVE", sql.NullTime{}, "ANNUAL", 590,
			testNow, sql.NullTime{Time: testNow.Add(365 * 24 * time.Hour), Valid: true}, testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "admin-1", "PAYMENT_APPROVED", "PAYMENT_REQUEST", "pr-1", sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sub, err := repo.Approve(context.Background(), "pr-1", "admin-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.EndsAt)
	assert.Equal(t, testNow.Add(365*24*time.Hour), *sub.EndsAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRollsBackWhenAuditFails(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRequestRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payment_requests WHERE id=\? FOR UPDATE`).
		WillReturnRows(paymentRow("pr-1", "PENDING", model.BillingMonthly, 59))
	mock.ExpectExec(`UPDATE payment_requests`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO subscriptions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_audit_logs`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "pr-1", "admin-1", testNow)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no commit may happen after a failed step")
}

func TestApproveRejectsDecidedOrMissing(t *testing.T) {
	t.Run("already decided", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM payment_requests WHERE id=\? FOR UPDATE`).
			WillReturnRows(paymentRow("pr-1", "APPROVED", model.BillingMonthly, 59))
		mock.ExpectRollback()

		_, err := NewPaymentRequestRepo(db).Approve(context.Background(), "pr-1", "admin-1", testNow)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM payment_requests WHERE id=\? FOR UPDATE`).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := NewPaymentRequestRepo(db).Reject(context.Background(), "nope", "admin-1", nil, testNow)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreatePaymentRequestConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM shops WHERE id=\? FOR UPDATE`).WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("shop-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payment_requests`).WithArgs("shop-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := NewPaymentRequestRepo(db).Create(context.Background(), &model.PaymentRequest{
		ShopID: "shop-1", BillingCycle: model.BillingMonthly, AmountGHS: 59, Method: model.PaymentMomo, Reference: "abc",
	})
	assert.ErrorIs(t, err, ErrPendingExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeResetToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM password_reset_tokens WHERE token_hash=\? AND used=0 AND expires_at > \?`).
			WithArgs("hash", testNow).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("tok-1", "user-1"))
		mock.ExpectExec(`UPDATE users SET password_hash=\?`).WithArgs("newhash", testNow, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE password_reset_tokens SET used=1 WHERE id=\?`).WithArgs("tok-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		userID, err := NewResetTokenRepo(db).Consume(context.Background(), "hash", "newhash", testNow)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("used or expired", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM password_reset_tokens`).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := NewResetTokenRepo(db).Consume(context.Background(), "hash", "newhash", testNow)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateWithOwnerDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO shops`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'a@b.co' for key 'users.uq_users_email'",
	})
	mock.ExpectRollback()

	err := NewShopRepo(db).CreateWithOwner(context.Background(),
		&model.Shop{Name: "Shop"}, &model.User{Email: "a@b.co"}, &model.Subscription{})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithOwnerCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO shops`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO subscriptions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	shop := &model.Shop{Name: "Shop"}
	owner := &model.User{Email: "a@b.co"}
	sub := &model.Subscription{Status: model.SubscriptionTrialing}
	require.NoError(t, NewShopRepo(db).CreateWithOwner(context.Background(), shop, owner, sub))
	assert.NotEmpty(t, shop.ID)
	assert.Equal(t, shop.ID, owner.ShopID)
	assert.Equal(t, shop.ID, sub.ShopID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascade(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM shops s`).WithArgs("shop-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "phone", "email", "location_note", "created_at", "updated_at", "oe", "op"}).
			AddRow("shop-1", "Shop", "0240000000", nil, nil, testNow, testNow, "o@x.co", "0240000000"))
	for _, table := range tenantTables {
		mock.ExpectExec(`DELETE FROM ` + table + ` WHERE shop_id=\?`).WithArgs("shop-1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, table := range userTables {
		mock.ExpectExec(`DELETE FROM ` + table + ` WHERE user_id IN`).WithArgs("shop-1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`DELETE FROM admin_audit_logs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM users WHERE shop_id=\?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM shops WHERE id=\?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "admin-1", "DELETE_SHOP", "SHOP", "shop-1", sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewShopRepo(db).DeleteCascade(context.Background(), "shop-1", "admin-1", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadeMissingShop(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM shops s`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := NewShopRepo(db).DeleteCascade(context.Background(), "nope", "admin-1", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceRevokeUnknown(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE authorized_devices SET revoked_at=\?`).WithArgs(testNow, "dev-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewDeviceRepo(db).Revoke(context.Background(), "user-1", "dev-1", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRevokeAlsoRevokesSessions(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE authorized_devices SET revoked_at=\?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sessions SET revoked_at=\? WHERE device_id=\?`).WithArgs(testNow, "dev-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, NewDeviceRepo(db).Revoke(context.Background(), "user-1", "dev-1", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLiveSessionNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM sessions s`).WithArgs("hash").WillReturnError(sql.ErrNoRows)

	_, err := NewSessionRepo(db).FindLiveByTokenHash(context.Background(), "hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentSubscription(t *testing.T) {
	db, mock := newMock(t)
	trialEnds := testNow.Add(24 * time.Hour)
	mock.ExpectQuery(`FROM subscriptions WHERE shop_id=\? ORDER BY created_at DESC LIMIT 1`).WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "status", "trial_ends_at", "billing_cycle", "amount_ghs",
			"started_at", "ends_at", "created_at", "updated_at"}).
			AddRow("sub-1", "shop-1", "TRIALING", trialEnds, "MONTHLY", 59, testNow, nil, testNow, testNow))

	sub, err := NewSubscriptionRepo(db).Current(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.Equal(t, trialEnds, *sub.TrialEndsAt)
	assert.Nil(t, sub.EndsAt)
}

func TestNormalizeTrialsCapsLatestPerShop(t *testing.T) {
	db, mock := newMock(t)
	capAt := testNow.Add(model.TrialPeriod)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, shop_id, trial_ends_at, created_at FROM subscriptions WHERE status=\? FOR UPDATE`).
		WithArgs("TRIALING").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "trial_ends_at", "created_at"}).
			AddRow("old-a", "shop-a", testNow.Add(90*24*time.Hour), testNow.Add(-48*time.Hour)).
			AddRow("new-a", "shop-a", testNow.Add(30*24*time.Hour), testNow.Add(-24*time.Hour)).
			AddRow("b", "shop-b", testNow.Add(2*24*time.Hour), testNow.Add(-24*time.Hour)))
	mock.ExpectExec(`UPDATE subscriptions SET trial_ends_at=\?`).WithArgs(capAt, testNow, "new-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "admin-1", "UTIL_NORMALIZE_TRIALS_TO_7_DAYS", "SUPPORT", "TRIALING_SUBSCRIPTIONS", sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := NewSubscriptionRepo(db).NormalizeTrials(context.Background(), "admin-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, capAt, res.CappedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendTrialFromFutureEnd(t *testing.T) {
	db, mock := newMock(t)
	current := testNow.Add(2 * 24 * time.Hour)
	want := current.Add(5 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM subscriptions WHERE shop_id=\? ORDER BY created_at DESC LIMIT 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "status", "trial_ends_at", "billing_cycle", "amount_ghs",
			"started_at", "ends_at", "created_at", "updated_at"}).
			AddRow("sub-1", "shop-1", "EXPIRED", current, "MONTHLY", 59, testNow, nil, testNow, testNow))
	mock.ExpectExec(`UPDATE subscriptions SET status=\?, trial_ends_at=\?`).WithArgs("TRIALING", want, testNow, "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_audit_logs`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := NewSubscriptionRepo(db).ExtendTrial(context.Background(), "shop-1", "admin-1", 5, testNow)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateKey(t *testing.T) {
	assert.Equal(t, "users.uq_users_phone", duplicateKey(&mysql.MySQLError{
		Number: 1062, Message: "Duplicate entry '0240000000' for key 'users.uq_users_phone'"}))
	assert.Equal(t, "", duplicateKey(errors.New("other")))
	assert.Equal(t, "", duplicateKey(&mysql.MySQLError{Number: 1452}))
}

func TestNotificationMarkReadIsShopScoped(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepo(db)

	mock.ExpectExec(`UPDATE notifications SET read_at=\? WHERE id=\? AND shop_id=\? AND read_at IS NULL`).
		WithArgs(testNow, "n-1", "shop-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE notifications SET read_at=\? WHERE id=\? AND shop_id=\? AND read_at IS NULL`).
		WithArgs(testNow, "n-1", "shop-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), "shop-1", "n-1", testNow))
	err := repo.MarkRead(context.Background(), "shop-2", "n-1", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationListAndCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepo(db)

	read := testNow.Add(-time.Minute)
	mock.ExpectQuery(`SELECT id, shop_id, message, read_at, created_at FROM notifications WHERE shop_id=\? ORDER BY created_at DESC`).
		WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "message", "read_at", "created_at"}).
			AddRow("n-2", "shop-1", "Consignment overdue", nil, testNow).
			AddRow("n-1", "shop-1", "Trial ends tomorrow", read, testNow.Add(-time.Hour)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE shop_id=\? AND read_at IS NULL`).
		WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, err := repo.ListForShop(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].ReadAt)
	require.NotNil(t, items[1].ReadAt)
	assert.Equal(t, read, *items[1].ReadAt)

	n, err := repo.CountUnread(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownBillingCycleIsRejectedBeforeSQL(t *testing.T) {
	db, mock := newMock(t)

	err := NewPaymentRequestRepo(db).Create(context.Background(), &model.PaymentRequest{
		ShopID: "shop-1", BillingCycle: "WEEKLY", AmountGHS: 10, Method: model.PaymentMomo, Reference: "abc",
	})
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)

	sub, err := NewSubscriptionRepo(db).Activate(context.Background(), "shop-1", "admin-1", "", nil, testNow)
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)
	assert.Nil(t, sub)
	assert.NoError(t, mock.ExpectationsWereMet())
}
