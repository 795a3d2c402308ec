package models_test

import (
	"github.com/cellarlot/backend/internal/models"
	"github.com/google/uuid"
)

func (suite *TestSuiteStandard) TestConnectInvalidPath() {
	err := models.Connect("/this/path/does/not/exist/db")
	suite.Assert().Error(err)

	// Reconnect for the teardown
	suite.SetupTest()
}

func (suite *TestSuiteStandard) TestNotFoundIsUserFriendly() {
	var allocation models.Allocation
	err := models.DB.First(&allocation, "id = ?", uuid.New()).Error

	suite.Require().Error(err)
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
	suite.Assert().Contains(err.Error(), "allocation")
}

func (suite *TestSuiteStandard) TestClosedDatabaseReturnsGeneralError() {
	sqlDB, err := models.DB.DB()
	suite.Require().NoError(err)
	sqlDB.Close()

	var voucher models.Voucher
	err = models.DB.First(&voucher, "id = ?", uuid.New()).Error
	suite.Assert().ErrorIs(err, models.ErrGeneral)

	// Reconnect for the teardown
	suite.SetupTest()
}
